package feeplan

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
)

// EditorTTL bounds how long an unsaved edit buffer survives between requests.
const EditorTTL = 2 * time.Hour

// EditorStore keeps portal edit buffers in the cache.
type EditorStore struct {
	store cache.Store
}

func NewEditorStore(store cache.Store) *EditorStore {
	return &EditorStore{store: store}
}

func editorKey(userID, memberID uint) string {
	return fmt.Sprintf("feeplan:editor:%d:%d", userID, memberID)
}

// Load returns the stored buffer, or nil when none exists or it belongs to
// another provider.
func (s *EditorStore) Load(ctx context.Context, userID, providerID, memberID uint) (*Editor, error) {
	var e Editor
	ok, err := s.store.GetJSON(ctx, editorKey(userID, memberID), &e)
	if err != nil || !ok {
		return nil, err
	}
	if e.ProviderID != providerID || e.MemberID != memberID {
		return nil, nil
	}
	return &e, nil
}

func (s *EditorStore) Save(ctx context.Context, userID uint, e *Editor) error {
	return s.store.SetJSON(ctx, editorKey(userID, e.MemberID), e, EditorTTL)
}

func (s *EditorStore) Clear(ctx context.Context, userID, memberID uint) error {
	return s.store.Delete(ctx, editorKey(userID, memberID))
}
