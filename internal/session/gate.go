// Package session admits callers into realtime editing rooms. A room is keyed
// by document id; the gate decides who may join it and obtains a signed
// credential for them from the hosted realtime service.
package session

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"collaborative-docs/internal/domain"
	"collaborative-docs/internal/errors"
	"collaborative-docs/internal/realtime"

	"go.uber.org/zap"
)

// DocumentFinder is the single lookup the gate needs from the document store.
type DocumentFinder interface {
	FindByID(ctx context.Context, id string) (*domain.Document, error)
}

// CredentialMinter signs realtime session credentials.
type CredentialMinter interface {
	Authorize(ctx context.Context, session realtime.SessionRequest) (*realtime.SessionResponse, error)
}

// Grant is the realtime service's answer, forwarded without interpretation.
type Grant struct {
	Status      int
	ContentType string
	Body        []byte
}

type Gate struct {
	documents DocumentFinder
	minter    CredentialMinter
	timeout   time.Duration
	logger    *zap.Logger
}

func NewGate(documents DocumentFinder, minter CredentialMinter, timeout time.Duration, logger *zap.Logger) *Gate {
	return &Gate{
		documents: documents,
		minter:    minter,
		timeout:   timeout,
		logger:    logger,
	}
}

// Allowed is the admission policy: owners, and members of the organization
// the document was created under.
func Allowed(doc *domain.Document, caller domain.Identity) bool {
	return doc.IsOwnedBy(caller.Subject) || doc.BelongsToOrganization(caller.OrganizationID)
}

// Authorize decides whether caller may join roomID and, if so, mints a
// full-access credential scoped to that room alone.
//
// Every refusal, including an unknown room, is errors.Denied. Store and
// realtime failures are errors.Unavailable and never mint anything. Nothing
// is cached between calls, so ownership changes apply on the next join.
func (g *Gate) Authorize(ctx context.Context, roomID string, caller domain.Identity) (*Grant, error) {
	if caller.Subject == "" {
		return nil, errors.Denied(stdErrors.New("no subject"))
	}
	if roomID == "" {
		return nil, errors.Denied(stdErrors.New("no room"))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	doc, err := g.documents.FindByID(ctx, roomID)
	if stdErrors.Is(err, domain.ErrDocumentNotFound) {
		return nil, errors.Denied(fmt.Errorf("room %s: %w", roomID, err))
	}
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("fetch room %s: %w", roomID, err))
	}

	if !Allowed(doc, caller) {
		return nil, errors.Denied(fmt.Errorf("subject %s may not join room %s", caller.Subject, roomID))
	}

	resp, err := g.minter.Authorize(ctx, realtime.SessionRequest{
		UserID: caller.Subject,
		UserInfo: realtime.UserInfo{
			Name:   caller.DisplayName(),
			Avatar: caller.AvatarURL,
		},
		Permissions: map[string][]string{
			roomID: {realtime.FullAccess},
		},
	})
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("mint credential for room %s: %w", roomID, err))
	}

	g.logger.Debug("realtime session granted",
		zap.String("room", roomID),
		zap.String("subject", caller.Subject),
		zap.Int("upstream_status", resp.Status),
	)

	return &Grant{Status: resp.Status, ContentType: resp.ContentType, Body: resp.Body}, nil
}
