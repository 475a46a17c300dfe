package stream

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/comind-network/cogindex/pkg/model"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("commit create", func(t *testing.T) {
		payload := []byte(`{
			"did": "did:plc:abc",
			"time_us": 1725911162329308,
			"kind": "commit",
			"commit": {
				"rev": "3l3qo2vutsw2b",
				"operation": "create",
				"collection": "network.comind.thought",
				"rkey": "3l3qo2vuowo2b",
				"record": {"thought": "hello", "createdAt": "2026-08-01T12:00:00Z"}
			}
		}`)

		event, ok := decodeFrame(payload)
		gt.True(t, ok)
		gt.Equal(t, event.Owner, "did:plc:abc")
		gt.Equal(t, event.Operation, model.OperationCreate)
		gt.Equal(t, event.Collection, "network.comind.thought")
		gt.Equal(t, event.RecordKey, "3l3qo2vuowo2b")
		gt.Equal(t, event.Payload["thought"], "hello")
		gt.Equal(t, event.Cursor, int64(1725911162329308))
		gt.Equal(t, event.Time, time.UnixMicro(1725911162329308))
	})

	t.Run("commit delete has no record", func(t *testing.T) {
		payload := []byte(`{
			"did": "did:plc:abc",
			"time_us": 1725911162329309,
			"kind": "commit",
			"commit": {
				"operation": "delete",
				"collection": "network.comind.thought",
				"rkey": "3l3qo2vuowo2b"
			}
		}`)

		event, ok := decodeFrame(payload)
		gt.True(t, ok)
		gt.Equal(t, event.Operation, model.OperationDelete)
		gt.Nil(t, event.Payload)
	})

	t.Run("identity frame skipped", func(t *testing.T) {
		payload := []byte(`{
			"did": "did:plc:abc",
			"time_us": 1725911162329310,
			"kind": "identity",
			"identity": {"handle": "someone.example.com"}
		}`)

		_, ok := decodeFrame(payload)
		gt.False(t, ok)
	})

	t.Run("unknown operation skipped", func(t *testing.T) {
		payload := []byte(`{
			"did": "did:plc:abc",
			"time_us": 1,
			"kind": "commit",
			"commit": {"operation": "truncate", "collection": "x", "rkey": "y"}
		}`)

		_, ok := decodeFrame(payload)
		gt.False(t, ok)
	})

	t.Run("garbage skipped", func(t *testing.T) {
		_, ok := decodeFrame([]byte("not json"))
		gt.False(t, ok)
	})
}

func TestSubscribeURL(t *testing.T) {
	j := NewJetstream("wss://jetstream.example.com",
		WithCollections([]string{"network.comind.agent", "network.comind.*"}),
		WithCursor(1725911162329308))

	target, err := j.subscribeURL()
	gt.NoError(t, err)
	gt.S(t, target).Contains("wss://jetstream.example.com/subscribe")
	gt.S(t, target).Contains("cursor=1725911162329308")
	gt.S(t, target).Contains("wantedCollections=network.comind.agent")
}

func TestSubscribeURLWithoutCursor(t *testing.T) {
	j := NewJetstream("wss://jetstream.example.com")

	target, err := j.subscribeURL()
	gt.NoError(t, err)
	gt.S(t, target).NotContains("cursor")
}

func TestSetCollectionsKeepsLatestUpdate(t *testing.T) {
	j := NewJetstream("wss://jetstream.example.com")

	// Updates collapse to the newest when nobody is draining the channel.
	j.SetCollections([]string{"a"})
	j.SetCollections([]string{"a", "b"})

	select {
	case patterns := <-j.updates:
		gt.Equal(t, patterns, []string{"a", "b"})
	default:
		t.Fatal("expected a pending update")
	}
}
