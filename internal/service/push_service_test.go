package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/models"
)

type pushRepoStub struct {
	subscriptions []models.PushSubscription
	listCalls     int
}

func (p *pushRepoStub) Upsert(_ context.Context, subscription *models.PushSubscription) error {
	for i := range p.subscriptions {
		if p.subscriptions[i].Endpoint == subscription.Endpoint {
			p.subscriptions[i] = *subscription
			return nil
		}
	}
	p.subscriptions = append(p.subscriptions, *subscription)
	return nil
}

func (p *pushRepoStub) ListByUser(_ context.Context, userID string) ([]models.PushSubscription, error) {
	p.listCalls++
	var rows []models.PushSubscription
	for _, subscription := range p.subscriptions {
		if subscription.UserID == userID {
			rows = append(rows, subscription)
		}
	}
	return rows, nil
}

func (p *pushRepoStub) DeleteByEndpoint(_ context.Context, endpoint string) error {
	kept := p.subscriptions[:0]
	for _, subscription := range p.subscriptions {
		if subscription.Endpoint != endpoint {
			kept = append(kept, subscription)
		}
	}
	p.subscriptions = kept
	return nil
}

func newPushServiceForTest(repo *pushRepoStub, config PushConfig) PushService {
	return NewPushService(repo, config, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func TestPushSubscribeStoresTrimmedSubscription(t *testing.T) {
	repo := &pushRepoStub{}
	svc := newPushServiceForTest(repo, PushConfig{})

	err := svc.Subscribe(context.Background(), "emp-1", dto.PushSubscribeRequest{
		Endpoint: "https://push.test/ep-1 ",
		Keys:     dto.PushSubscriptionKeys{P256dh: " key ", Auth: " auth "},
	})
	require.NoError(t, err)
	require.Len(t, repo.subscriptions, 1)
	require.Equal(t, "https://push.test/ep-1", repo.subscriptions[0].Endpoint)
	require.Equal(t, "key", repo.subscriptions[0].P256dh)
	require.Equal(t, "emp-1", repo.subscriptions[0].UserID)
}

func TestPushSubscribeValidatesPayload(t *testing.T) {
	svc := newPushServiceForTest(&pushRepoStub{}, PushConfig{})

	err := svc.Subscribe(context.Background(), "emp-1", dto.PushSubscribeRequest{Endpoint: "not-a-url"})
	require.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestPushFanOutIsDisabledWithoutKeys(t *testing.T) {
	repo := &pushRepoStub{subscriptions: []models.PushSubscription{
		{Endpoint: "https://push.test/ep-1", UserID: "emp-1", P256dh: "key", Auth: "auth"},
	}}
	svc := newPushServiceForTest(repo, PushConfig{})

	// Without VAPID keys fan-out must return before touching storage.
	svc.FanOut(context.Background(), "emp-1", dto.PushPayload{Title: "hi"})
	require.Zero(t, repo.listCalls)
}

func TestPushFanOutNoSubscriptionsIsNoOp(t *testing.T) {
	repo := &pushRepoStub{}
	svc := newPushServiceForTest(repo, PushConfig{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"})

	svc.FanOut(context.Background(), "emp-1", dto.PushPayload{Title: "hi"})
	require.Equal(t, 1, repo.listCalls)
}
