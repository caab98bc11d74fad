package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"collaborative-docs/internal/domain"
	apiError "collaborative-docs/internal/errors"
	"collaborative-docs/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockDocuments struct {
	mock.Mock
}

func (m *MockDocuments) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

type MockMinter struct {
	mock.Mock
}

func (m *MockMinter) Authorize(ctx context.Context, session realtime.SessionRequest) (*realtime.SessionResponse, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*realtime.SessionResponse), args.Error(1)
}

func strPtr(s string) *string { return &s }

var (
	personalDoc = &domain.Document{ID: "d1", OwnerID: "u1"}
	orgDoc      = &domain.Document{ID: "d2", OwnerID: "u1", OrganizationID: strPtr("org_A")}
	signed      = &realtime.SessionResponse{Status: http.StatusOK, ContentType: "application/json", Body: []byte(`{"token":"abc"}`)}
)

func newGate(docs *MockDocuments, minter *MockMinter) *Gate {
	return NewGate(docs, minter, time.Second, zap.NewNop())
}

func isDenied(err error) bool {
	var apiErr *apiError.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && apiErr.Bare
}

func isUnavailable(err error) bool {
	return apiError.IsStatus(err, http.StatusServiceUnavailable)
}

func TestAuthorize_OwnerGranted(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d1").Return(personalDoc, nil)
	minter.On("Authorize", mock.Anything, mock.Anything).Return(signed, nil)

	grant, err := newGate(docs, minter).Authorize(context.Background(), "d1", domain.Identity{Subject: "u1"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, grant.Status)
	assert.Equal(t, "application/json", grant.ContentType)
	assert.Equal(t, `{"token":"abc"}`, string(grant.Body))
}

func TestAuthorize_StrangerDenied(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d1").Return(personalDoc, nil)

	grant, err := newGate(docs, minter).Authorize(context.Background(), "d1", domain.Identity{Subject: "u2"})

	assert.True(t, isDenied(err))
	assert.Nil(t, grant)
	minter.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestAuthorize_OrganizationMemberGranted(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d2").Return(orgDoc, nil)
	minter.On("Authorize", mock.Anything, mock.Anything).Return(signed, nil)

	_, err := newGate(docs, minter).Authorize(context.Background(), "d2",
		domain.Identity{Subject: "u2", OrganizationID: "org_A"})

	assert.NoError(t, err)
}

func TestAuthorize_OtherOrganizationDenied(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d2").Return(orgDoc, nil)

	_, err := newGate(docs, minter).Authorize(context.Background(), "d2",
		domain.Identity{Subject: "u2", OrganizationID: "org_B"})

	assert.True(t, isDenied(err))
	minter.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

// An unknown room looks exactly like a refused one.
func TestAuthorize_UnknownRoomDenied(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "nope").Return(nil, domain.ErrDocumentNotFound)
	docs.On("FindByID", mock.Anything, "d1").Return(personalDoc, nil)
	gate := newGate(docs, minter)

	_, missingErr := gate.Authorize(context.Background(), "nope", domain.Identity{Subject: "u1"})
	_, refusedErr := gate.Authorize(context.Background(), "d1", domain.Identity{Subject: "u2"})

	require.True(t, isDenied(missingErr))
	require.True(t, isDenied(refusedErr))
	assert.Equal(t, missingErr.(*apiError.APIError).Message, refusedErr.(*apiError.APIError).Message)
	minter.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestAuthorize_StoreTimeoutIsServiceError(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d1").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	gate := NewGate(docs, minter, 20*time.Millisecond, zap.NewNop())
	grant, err := gate.Authorize(context.Background(), "d1", domain.Identity{Subject: "u1"})

	assert.Nil(t, grant)
	assert.True(t, isUnavailable(err))
	assert.False(t, isDenied(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	minter.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestAuthorize_MintFailureIsServiceError(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d1").Return(personalDoc, nil)
	minter.On("Authorize", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := newGate(docs, minter).Authorize(context.Background(), "d1", domain.Identity{Subject: "u1"})

	assert.True(t, isUnavailable(err))
}

func TestAuthorize_UpstreamRefusalPassedThrough(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d1").Return(personalDoc, nil)
	minter.On("Authorize", mock.Anything, mock.Anything).
		Return(&realtime.SessionResponse{Status: http.StatusForbidden, Body: []byte(`{"error":"quota"}`)}, nil)

	grant, err := newGate(docs, minter).Authorize(context.Background(), "d1", domain.Identity{Subject: "u1"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, grant.Status)
	assert.Equal(t, `{"error":"quota"}`, string(grant.Body))
}

func TestAuthorize_NoSubjectFailsFast(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)

	_, err := newGate(docs, minter).Authorize(context.Background(), "d1", domain.Identity{OrganizationID: "org_A"})

	assert.True(t, isDenied(err))
	docs.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestAuthorize_EmptyRoomDenied(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)

	_, err := newGate(docs, minter).Authorize(context.Background(), "", domain.Identity{Subject: "u1"})

	assert.True(t, isDenied(err))
	docs.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestAuthorize_CredentialScopeAndPresence(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d2").Return(orgDoc, nil)
	minter.On("Authorize", mock.Anything, realtime.SessionRequest{
		UserID:      "u2",
		UserInfo:    realtime.UserInfo{Name: domain.AnonymousName, Avatar: "https://img.example.com/u2.png"},
		Permissions: map[string][]string{"d2": {realtime.FullAccess}},
	}).Return(signed, nil)

	_, err := newGate(docs, minter).Authorize(context.Background(), "d2", domain.Identity{
		Subject:        "u2",
		AvatarURL:      "https://img.example.com/u2.png",
		OrganizationID: "org_A",
	})

	require.NoError(t, err)
	minter.AssertExpectations(t)
}

func TestAuthorize_AvatarNotDefaulted(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d1").Return(personalDoc, nil)
	minter.On("Authorize", mock.Anything, mock.MatchedBy(func(s realtime.SessionRequest) bool {
		return s.UserInfo.Name == "Ada" && s.UserInfo.Avatar == ""
	})).Return(signed, nil)

	_, err := newGate(docs, minter).Authorize(context.Background(), "d1", domain.Identity{Subject: "u1", Name: "Ada"})

	require.NoError(t, err)
	minter.AssertExpectations(t)
}

func TestAuthorize_Idempotent(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d2").Return(orgDoc, nil)
	minter.On("Authorize", mock.Anything, mock.Anything).Return(signed, nil)
	gate := newGate(docs, minter)

	for _, caller := range []domain.Identity{
		{Subject: "u1"},
		{Subject: "u2", OrganizationID: "org_A"},
		{Subject: "u3", OrganizationID: "org_B"},
	} {
		_, first := gate.Authorize(context.Background(), "d2", caller)
		_, second := gate.Authorize(context.Background(), "d2", caller)
		assert.Equal(t, first == nil, second == nil, caller.Subject)
	}
	// every join re-reads ownership
	docs.AssertNumberOfCalls(t, "FindByID", 6)
}

func TestAuthorize_OwnershipChangeAppliesOnNextJoin(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d1").Return(personalDoc, nil).Once()
	docs.On("FindByID", mock.Anything, "d1").Return(&domain.Document{ID: "d1", OwnerID: "u9"}, nil).Once()
	minter.On("Authorize", mock.Anything, mock.Anything).Return(signed, nil)
	gate := newGate(docs, minter)

	_, err := gate.Authorize(context.Background(), "d1", domain.Identity{Subject: "u1"})
	assert.NoError(t, err)

	_, err = gate.Authorize(context.Background(), "d1", domain.Identity{Subject: "u1"})
	assert.True(t, isDenied(err))
}

// The decision table: grant iff owner, or the document has an organization
// equal to the caller's claim.
func TestAllowed_Policy(t *testing.T) {
	orgs := []*string{nil, strPtr(""), strPtr("org_A"), strPtr("org_B")}
	subjects := []string{"u1", "u2"}
	claims := []string{"", "org_A", "org_B"}

	for _, org := range orgs {
		for _, subject := range subjects {
			for _, claim := range claims {
				doc := &domain.Document{ID: "d", OwnerID: "u1", OrganizationID: org}
				caller := domain.Identity{Subject: subject, OrganizationID: claim}

				want := subject == "u1" || (org != nil && *org != "" && *org == claim)
				name := fmt.Sprintf("org=%v subject=%s claim=%q", org != nil && *org != "", subject, claim)
				assert.Equal(t, want, Allowed(doc, caller), name)
			}
		}
	}
}

func TestAuthorize_ConcurrentCallers(t *testing.T) {
	docs, minter := new(MockDocuments), new(MockMinter)
	docs.On("FindByID", mock.Anything, "d1").Return(personalDoc, nil)
	docs.On("FindByID", mock.Anything, "d2").Return(orgDoc, nil)
	minter.On("Authorize", mock.Anything, mock.Anything).Return(signed, nil)
	gate := newGate(docs, minter)

	var wg sync.WaitGroup
	results := make([]error, 40)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, caller := "d1", domain.Identity{Subject: "u2"}
			if i%2 == 0 {
				room, caller = "d2", domain.Identity{Subject: "u2", OrganizationID: "org_A"}
			}
			_, results[i] = gate.Authorize(context.Background(), room, caller)
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if i%2 == 0 {
			assert.NoError(t, err)
		} else {
			assert.True(t, isDenied(err))
		}
	}
}
