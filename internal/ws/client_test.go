package ws

import "testing"

func TestClientEnqueueAfterClose(t *testing.T) {
	t.Parallel()

	client := newClient("c1", nil)
	client.close()
	client.close()

	// Must report false without touching the closed channel.
	if client.enqueue([]byte(`{"type":"translationResult"}`)) {
		t.Fatalf("enqueue on a closed client must report false")
	}
	if !client.closed() {
		t.Fatalf("expected client to report closed")
	}
}

func TestClientEnqueueFullBuffer(t *testing.T) {
	t.Parallel()

	client := newClient("c1", nil)
	for i := 0; i < sendBuffer; i++ {
		if !client.enqueue([]byte("x")) {
			t.Fatalf("enqueue %d failed before the buffer filled", i)
		}
	}
	if client.enqueue([]byte("x")) {
		t.Fatalf("enqueue must report false on a full buffer")
	}
}
