package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pefman/arcana-duel/internal/api"
)

// ObjectClient is the part of the backend client RemoteStore needs.
type ObjectClient interface {
	PutObject(ctx context.Context, o api.Object) (api.Object, error)
	GetObject(ctx context.Context, kind, id string) (api.Object, error)
	DeleteObject(ctx context.Context, kind, id string) error
	SearchObjects(ctx context.Context, kind, query string) ([]api.Object, error)
}

// RemoteStore keeps saves in the backend object store.
type RemoteStore struct {
	client ObjectClient
}

var _ SaveStore = (*RemoteStore)(nil)

func NewRemoteStore(client ObjectClient) *RemoteStore {
	return &RemoteStore{client: client}
}

func mapErr(err error) error {
	if errors.Is(err, api.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *RemoteStore) Put(ctx context.Context, s Save) (Save, error) {
	if err := s.Validate(); err != nil {
		return Save{}, err
	}
	o, err := r.client.PutObject(ctx, api.Object(s))
	if err != nil {
		return Save{}, fmt.Errorf("remote put %s/%s: %w", s.Kind, s.ID, mapErr(err))
	}
	return Save(o), nil
}

func (r *RemoteStore) Get(ctx context.Context, kind, id string) (Save, error) {
	o, err := r.client.GetObject(ctx, kind, id)
	if err != nil {
		return Save{}, mapErr(err)
	}
	return Save(o), nil
}

func (r *RemoteStore) List(ctx context.Context, kind string) ([]Save, error) {
	objs, err := r.client.SearchObjects(ctx, kind, "")
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]Save, 0, len(objs))
	for _, o := range objs {
		out = append(out, Save(o))
	}
	return out, nil
}

func (r *RemoteStore) Delete(ctx context.Context, kind, id string) error {
	return mapErr(r.client.DeleteObject(ctx, kind, id))
}
