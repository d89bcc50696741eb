// Package gateway defines the contract between the session and the remote
// authoritative store.
//
// A Gateway returns canonical entities (with server-assigned ids) on
// success. Failures are *errors.Error values with one of the remote codes:
// VALIDATION, NOT_FOUND, UNAUTHORIZED, CONFLICT, NETWORK or TIMEOUT.
// Retry and timeout policy belong to the implementation; callers only see
// terminal outcomes.
package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/tags"
)

// Gateway is the remote CRUD surface.
type Gateway interface {
	// Create inserts e and returns the stored record. e.Key().ID is ignored.
	Create(ctx context.Context, e entity.Entity) (entity.Entity, error)
	// Update replaces the record with e.
	Update(ctx context.Context, e entity.Entity) (entity.Entity, error)
	// Patch changes individual fields of the record under key.
	Patch(ctx context.Context, key entity.Key, p entity.Patch) (entity.Entity, error)
	// Delete removes the record under key.
	Delete(ctx context.Context, key entity.Key) error
	// Get reads one record.
	Get(ctx context.Context, key entity.Key) (entity.Entity, error)

	ListProjects(ctx context.Context) ([]*entity.Project, error)
	ListFeatures(ctx context.Context, projectID string) ([]*entity.Feature, error)
	ListTasks(ctx context.Context, projectID string) ([]*entity.Task, error)
}

// Classify maps transport-level failures onto remote error codes. Errors
// that already carry a code pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.AsError(err) != nil {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrTimeout(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.ErrTimeout(err)
	}
	return errors.ErrNetwork(err)
}

// CheckVersion fails with CONFLICT when update was based on a version other
// than stored. The version is updated_at; a zero value skips the check.
func CheckVersion(update, stored entity.Entity) error {
	since := entity.UpdatedAt(update)
	if since.IsZero() {
		return nil
	}
	at := entity.UpdatedAt(stored)
	if since.Equal(at) {
		return nil
	}
	return errors.ErrConflict(stored.Key().String(),
		fmt.Sprintf("stored record is at version %s, the update was based on %s",
			at.UTC().Format(time.RFC3339Nano), since.UTC().Format(time.RFC3339Nano)))
}

// ProjectOf returns the project id a feature or task belongs to, looking up
// the owning feature of a task through lookup.
func ProjectOf(e entity.Entity, lookup func(featureID string) (*entity.Feature, bool)) (string, error) {
	switch v := e.(type) {
	case *entity.Project:
		return v.ID, nil
	case *entity.Feature:
		return v.ProjectID, nil
	case *entity.Task:
		f, ok := lookup(v.Owner())
		if !ok {
			return "", errors.ErrNotFound(entity.FeatureKey(v.Owner()).String())
		}
		return f.ProjectID, nil
	default:
		return "", fmt.Errorf("unsupported entity %T", e)
	}
}

// Normalize applies the defaults every remote applies before storing a
// record: default status, priority and project config, a deduplicated tag
// list, and ids for new comments.
func Normalize(e entity.Entity) {
	switch v := e.(type) {
	case *entity.Feature:
		v.SetDefaults()
		v.Tags = tags.Merge(nil, v.Tags)
	case *entity.Task:
		numberComments(v)
	case *entity.Project:
		v.SetDefaults()
	}
}

// numberComments gives comments without an id the next number on the task.
func numberComments(t *entity.Task) {
	var last int64
	for _, c := range t.Comments {
		if n, err := strconv.ParseInt(c.ID, 10, 64); err == nil && n > last {
			last = n
		}
	}
	for i := range t.Comments {
		if t.Comments[i].ID == "" {
			last++
			t.Comments[i].ID = strconv.FormatInt(last, 10)
		}
	}
}
