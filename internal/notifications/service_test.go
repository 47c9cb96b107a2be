package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sara-platform/sara-hub/internal/broker"
	"github.com/sara-platform/sara-hub/pkg/db/models"
	pkgerrors "github.com/sara-platform/sara-hub/pkg/errors"
)

type fakeRepository struct {
	createFn      func(ctx context.Context, n *models.Notification) error
	listUnreadFn  func(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	countUnreadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error)
}

func (f *fakeRepository) Create(ctx context.Context, n *models.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeRepository) ListUnread(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if f.listUnreadFn != nil {
		return f.listUnreadFn(ctx, userID, limit)
	}
	return nil, nil
}

func (f *fakeRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.countUnreadFn != nil {
		return f.countUnreadFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID, now)
	}
	return markResult{}, nil
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	events []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{topic: topic, payload: payload})
	return nil
}

func newServiceWith(t *testing.T, repo Repository, pub Publisher) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Publisher: pub})
	require.NoError(t, err)
	return svc
}

func decodeEvent(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	var event map[string]any
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestPushUnreadPublishesEachNotificationInOrder(t *testing.T) {
	userID := uuid.New()
	newest := models.Notification{ID: uuid.New(), UserID: userID, Title: "nueva insignia", Kind: models.NotificationAchievement, CreatedAt: time.Now()}
	older := models.Notification{ID: uuid.New(), UserID: userID, Title: "bienvenida", Kind: models.NotificationInfo, CreatedAt: time.Now().Add(-time.Hour)}

	repo := &fakeRepository{
		listUnreadFn: func(ctx context.Context, id uuid.UUID, limit int) ([]models.Notification, error) {
			assert.Equal(t, userID, id)
			assert.Equal(t, defaultUnreadLimit, limit)
			return []models.Notification{newest, older}, nil
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	require.NoError(t, svc.PushUnread(context.Background(), userID))

	require.Len(t, pub.events, 2)
	wantTopic := broker.NotificationsTopic(userID)
	wantIDs := []string{newest.ID.String(), older.ID.String()}
	for i, ev := range pub.events {
		assert.Equal(t, wantTopic, ev.topic)
		decoded := decodeEvent(t, ev.payload)
		assert.Equal(t, EventNotification, decoded["type"])
		notification := decoded["notification"].(map[string]any)
		assert.Equal(t, wantIDs[i], notification["id"])
	}
}

func TestPushUnreadWireShape(t *testing.T) {
	userID := uuid.New()
	url := "/insignias/42"
	label := "Ver insignia"
	row := models.Notification{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        models.NotificationAchievement,
		Title:       "nueva insignia",
		Message:     "Ganaste la insignia de calidad",
		ActionURL:   &url,
		ActionLabel: &label,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	repo := &fakeRepository{
		listUnreadFn: func(context.Context, uuid.UUID, int) ([]models.Notification, error) {
			return []models.Notification{row}, nil
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	require.NoError(t, svc.PushUnread(context.Background(), userID))

	require.Len(t, pub.events, 1)
	notification := decodeEvent(t, pub.events[0].payload)["notification"].(map[string]any)
	assert.Equal(t, "nueva insignia", notification["titulo"])
	assert.Equal(t, "Ganaste la insignia de calidad", notification["mensaje"])
	assert.Equal(t, "achievement", notification["tipo"])
	assert.Equal(t, false, notification["leida"])
	assert.Equal(t, url, notification["url_accion"])
	assert.Equal(t, label, notification["texto_accion"])

	_, err := time.Parse(time.RFC3339, notification["fecha"].(string))
	assert.NoError(t, err, "fecha must be RFC3339")
}

func TestMarkReadPublishesConvergenceReceipt(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, uid, nid uuid.UUID, now time.Time) (markResult, error) {
			return markResult{Found: true, Updated: true}, nil
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	require.NoError(t, svc.MarkRead(context.Background(), userID, notificationID))

	require.Len(t, pub.events, 1)
	notification := decodeEvent(t, pub.events[0].payload)["notification"].(map[string]any)
	assert.Equal(t, notificationID.String(), notification["id"])
	assert.Equal(t, true, notification["leida"])
}

func TestMarkReadAlreadyReadStillConverges(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(context.Context, uuid.UUID, uuid.UUID, time.Time) (markResult, error) {
			return markResult{Found: true, Updated: false}, nil
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	require.NoError(t, svc.MarkRead(context.Background(), uuid.New(), uuid.New()))
	assert.Len(t, pub.events, 1, "repeat mark still publishes the receipt")
}

func TestMarkReadForeignNotificationSilentlyAbsorbed(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(context.Context, uuid.UUID, uuid.UUID, time.Time) (markResult, error) {
			return markResult{Found: false}, nil
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	require.NoError(t, svc.MarkRead(context.Background(), uuid.New(), uuid.New()))
	assert.Empty(t, pub.events)
}

func TestPushUnreadCount(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepository{
		countUnreadFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 2, nil
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	require.NoError(t, svc.PushUnreadCount(context.Background(), userID))

	require.Len(t, pub.events, 1)
	decoded := decodeEvent(t, pub.events[0].payload)
	assert.Equal(t, EventStatsUpdate, decoded["type"])
	stats := decoded["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["unread_notifications"])
}

func TestPushUnreadCountRepoErrorPropagates(t *testing.T) {
	repo := &fakeRepository{
		countUnreadFn: func(context.Context, uuid.UUID) (int64, error) {
			return 0, gorm.ErrRecordNotFound
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	err := svc.PushUnreadCount(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.Empty(t, pub.events)
}

func TestCreatePersistsBeforePublishing(t *testing.T) {
	userID := uuid.New()
	var persisted *models.Notification
	repo := &fakeRepository{
		createFn: func(ctx context.Context, n *models.Notification) error {
			persisted = n
			return nil
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	err := svc.Create(context.Background(), CreateParams{
		UserID:   userID,
		Kind:     "achievement",
		Title:    "nueva insignia",
		Message:  "Ganaste una insignia",
		Priority: 3,
	})
	require.NoError(t, err)

	require.NotNil(t, persisted)
	assert.Equal(t, models.NotificationAchievement, persisted.Kind)
	assert.Equal(t, 3, persisted.Priority)
	assert.Len(t, pub.events, 1)
}

func TestCreatePersistenceFailurePropagatesWithoutPublish(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(context.Context, *models.Notification) error {
			return errors.New("connection reset")
		},
	}
	pub := &fakePublisher{}

	svc := newServiceWith(t, repo, pub)
	err := svc.Create(context.Background(), CreateParams{UserID: uuid.New(), Title: "x"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
	assert.Empty(t, pub.events, "publish must not happen after a failed persist")
}

func TestCreateValidation(t *testing.T) {
	svc := newServiceWith(t, &fakeRepository{}, &fakePublisher{})

	err := svc.Create(context.Background(), CreateParams{Title: "sin usuario"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	err = svc.Create(context.Background(), CreateParams{UserID: uuid.New()})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreateNormalizesUnknownKindAndPriority(t *testing.T) {
	var persisted *models.Notification
	repo := &fakeRepository{
		createFn: func(ctx context.Context, n *models.Notification) error {
			persisted = n
			return nil
		},
	}
	svc := newServiceWith(t, repo, &fakePublisher{})

	err := svc.Create(context.Background(), CreateParams{
		UserID:   uuid.New(),
		Kind:     "bogus",
		Title:    "t",
		Priority: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationInfo, persisted.Kind)
	assert.Equal(t, 1, persisted.Priority)
}

func TestPublishFailureSurfacesAsDependencyError(t *testing.T) {
	repo := &fakeRepository{
		countUnreadFn: func(context.Context, uuid.UUID) (int64, error) { return 1, nil },
	}
	pub := &fakePublisher{err: errors.New("broker down")}

	svc := newServiceWith(t, repo, pub)
	err := svc.PushUnreadCount(context.Background(), uuid.New())
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
