package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/comind-network/cogindex/pkg/model"
)

func TestRecordURIParse(t *testing.T) {
	uri := model.NewRecordURI("did:plc:abc123", "network.comind.thought", "3k44diwgoq22a")
	gt.Equal(t, uri, model.RecordURI("at://did:plc:abc123/network.comind.thought/3k44diwgoq22a"))

	owner, collection, rkey, err := uri.Parse()
	gt.NoError(t, err)
	gt.Equal(t, owner, "did:plc:abc123")
	gt.Equal(t, collection, "network.comind.thought")
	gt.Equal(t, rkey, "3k44diwgoq22a")
}

func TestRecordURIValidate(t *testing.T) {
	tests := []struct {
		name    string
		uri     model.RecordURI
		wantErr bool
	}{
		{
			name: "valid",
			uri:  "at://did:plc:abc/network.comind.thought/rkey1",
		},
		{
			name:    "missing scheme",
			uri:     "did:plc:abc/network.comind.thought/rkey1",
			wantErr: true,
		},
		{
			name:    "missing rkey",
			uri:     "at://did:plc:abc/network.comind.thought",
			wantErr: true,
		},
		{
			name:    "empty collection",
			uri:     "at://did:plc:abc//rkey1",
			wantErr: true,
		},
		{
			name:    "empty",
			uri:     "",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.uri.Validate()
			if tc.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

func TestEventURI(t *testing.T) {
	ev := &model.Event{
		Owner:      "did:plc:abc",
		Operation:  model.OperationCreate,
		Collection: "network.comind.claim",
		RecordKey:  "rkey9",
	}
	gt.Equal(t, ev.URI(), model.RecordURI("at://did:plc:abc/network.comind.claim/rkey9"))
}
