package persistence

import (
	"context"
	"errors"

	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/util"
)

type AuditRepository struct {
	store          Store
	encoderDecoder util.EncoderDecoder[model.AuditEvent]
}

func NewAuditRepository(store Store, encoderDecoder util.EncoderDecoder[model.AuditEvent]) *AuditRepository {
	return &AuditRepository{store: store, encoderDecoder: encoderDecoder}
}

func (r *AuditRepository) Append(ctx context.Context, userId string, event model.AuditEvent) error {
	data, err := r.encoderDecoder.Encode(event)
	if err != nil {
		return err
	}
	return r.store.Append(ctx, Key(AUDIT_KEY, userId), data)
}

// List returns events newest first. limit <= 0 returns everything.
func (r *AuditRepository) List(ctx context.Context, userId string, limit int64) ([]model.AuditEvent, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	items, err := r.store.Range(ctx, Key(AUDIT_KEY, userId), 0, stop)
	if err != nil {
		return nil, err
	}
	events := make([]model.AuditEvent, 0, len(items))
	for _, item := range items {
		ev, err := r.encoderDecoder.Decode(item)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, nil
}

type ProfileRepository struct {
	store          Store
	encoderDecoder util.EncoderDecoder[model.ProfileSnapshot]
}

func NewProfileRepository(store Store, encoderDecoder util.EncoderDecoder[model.ProfileSnapshot]) *ProfileRepository {
	return &ProfileRepository{store: store, encoderDecoder: encoderDecoder}
}

// Latest returns nil without error when no snapshot exists.
func (r *ProfileRepository) Latest(ctx context.Context, userId string) (*model.ProfileSnapshot, error) {
	data, err := r.store.Latest(ctx, Key(PROFILE_KEY, userId))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.encoderDecoder.Decode(data)
}

func (r *ProfileRepository) Append(ctx context.Context, userId string, snapshot model.ProfileSnapshot) error {
	data, err := r.encoderDecoder.Encode(snapshot)
	if err != nil {
		return err
	}
	if err := r.store.Append(ctx, Key(PROFILE_KEY, userId), data); err != nil {
		return err
	}
	return r.store.AddMember(ctx, KNOWN_USERS_KEY, userId)
}

func (r *ProfileRepository) List(ctx context.Context, userId string) ([]model.ProfileSnapshot, error) {
	items, err := r.store.Range(ctx, Key(PROFILE_KEY, userId), 0, -1)
	if err != nil {
		return nil, err
	}
	res := make([]model.ProfileSnapshot, 0, len(items))
	for _, item := range items {
		p, err := r.encoderDecoder.Decode(item)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, nil
}
