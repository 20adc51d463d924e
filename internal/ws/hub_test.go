package ws

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"abegfix/internal/models"
)

func TestHubShutdownUnblocksPendingUnregister(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	h.Shutdown()

	done := make(chan struct{})
	go func() {
		h.notifyUnregister(&Client{hub: h, userID: primitive.NewObjectID().Hex()})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unregister still blocked after hub shutdown")
	}
}

func TestHubShutdownRefusesNewRegistrations(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	h.Shutdown()

	done := make(chan bool, 1)
	go func() {
		done <- h.notifyRegister(&Client{hub: h, userID: primitive.NewObjectID().Hex()})
	}()

	select {
	case accepted := <-done:
		if accepted {
			t.Fatal("notifyRegister() = true after shutdown, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("register still blocked after hub shutdown")
	}
}

func TestHubShutdownUnblocksPendingDelivery(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	h.Shutdown()

	sender := &Client{hub: h, userID: primitive.NewObjectID().Hex()}
	done := make(chan struct{})
	go func() {
		// Fill past the delivery buffer so the send would block without the
		// shutdown escape.
		for i := 0; i < clientSendBufferSize+1; i++ {
			h.notifyDeliver(delivery{sender: sender, message: &models.Message{}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("delivery still blocked after hub shutdown")
	}
}

func TestHubShutdownIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	h.Shutdown()
	h.Shutdown()
}
