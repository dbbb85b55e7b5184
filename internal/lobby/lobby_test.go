package lobby

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duraknet/durak/internal/game"
	"github.com/duraknet/durak/internal/models"
)

func testPlayer(name string) *models.Player {
	id := uuid.New()
	return &models.Player{
		ID:        id,
		User:      &models.User{ID: id, Username: name},
		Connected: true,
	}
}

func noopNotify(uuid.UUID, game.SessionEvent) {}

func TestCreateAndLookup(t *testing.T) {
	r := NewRegistry(noopNotify)
	owner := testPlayer("alice")

	s, err := r.Create(owner)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, owner.ID, s.OwnerID)

	assert.Same(t, s, r.Lookup(owner.ID))
	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, []uuid.UUID{s.ID}, r.List())
}

func TestCreateWhileInSession(t *testing.T) {
	r := NewRegistry(noopNotify)
	owner := testPlayer("alice")

	_, err := r.Create(owner)
	require.NoError(t, err)

	_, err = r.Create(owner)
	assert.ErrorIs(t, err, ErrAlreadyInSession)
}

func TestJoinFlow(t *testing.T) {
	r := NewRegistry(noopNotify)
	owner := testPlayer("alice")
	guest := testPlayer("bob")

	s, err := r.Create(owner)
	require.NoError(t, err)

	joined, err := r.Join(guest, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, joined)
	assert.Same(t, s, r.Lookup(guest.ID))

	// A third seat does not exist.
	_, err = r.Join(testPlayer("carol"), s.ID)
	assert.ErrorIs(t, err, ErrSessionFull)

	// Rejoining your own session is a reconnect.
	_, err = r.Join(guest, s.ID)
	require.NoError(t, err)
}

func TestJoinUnknownSession(t *testing.T) {
	r := NewRegistry(noopNotify)
	_, err := r.Join(testPlayer("bob"), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoinWhileInOtherSession(t *testing.T) {
	r := NewRegistry(noopNotify)
	a, err := r.Create(testPlayer("alice"))
	require.NoError(t, err)
	_, err = r.Create(testPlayer("bob"))
	require.NoError(t, err)

	carol := testPlayer("carol")
	_, err = r.Join(carol, a.ID)
	require.NoError(t, err)

	b := r.Lookup(carol.ID)
	require.NotNil(t, b)
	other, err := r.Create(carol)
	assert.Nil(t, other)
	assert.ErrorIs(t, err, ErrAlreadyInSession)
}

func TestDeleteOwnerOnly(t *testing.T) {
	r := NewRegistry(noopNotify)
	owner := testPlayer("alice")
	guest := testPlayer("bob")

	s, err := r.Create(owner)
	require.NoError(t, err)
	_, err = r.Join(guest, s.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Delete(s.ID, guest.ID), ErrNotOwner)
	require.NoError(t, r.Delete(s.ID, owner.ID))

	assert.Nil(t, r.Lookup(owner.ID))
	assert.Nil(t, r.Lookup(guest.ID))
	assert.ErrorIs(t, r.Delete(s.ID, owner.ID), ErrSessionNotFound)

	// Freed players can open new sessions.
	_, err = r.Create(owner)
	assert.NoError(t, err)
}

func TestGameEndRetiresSession(t *testing.T) {
	r := NewRegistry(noopNotify)
	owner := testPlayer("alice")

	s, err := r.Create(owner)
	require.NoError(t, err)

	r.onGameEnd(s.ID, owner.ID)
	assert.Nil(t, r.Lookup(owner.ID))
	_, ok := r.Get(s.ID)
	assert.False(t, ok)
}

// TestConcurrentCreateJoin races many players against a small set of
// sessions and checks the single-session-per-player bookkeeping holds.
func TestConcurrentCreateJoin(t *testing.T) {
	r := NewRegistry(noopNotify)

	var owners []*models.Player
	var sessionIDs []uuid.UUID
	for i := 0; i < 8; i++ {
		owner := testPlayer("owner")
		s, err := r.Create(owner)
		require.NoError(t, err)
		owners = append(owners, owner)
		sessionIDs = append(sessionIDs, s.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := testPlayer("guest")
			for _, id := range sessionIDs {
				if _, err := r.Join(p, id); err == nil {
					break
				}
			}
		}(i)
	}
	wg.Wait()

	// Every session holds at most two members and every joined player maps
	// back to exactly the session holding them.
	for _, id := range sessionIDs {
		s, ok := r.Get(id)
		require.True(t, ok)
		members := s.Members()
		assert.LessOrEqual(t, len(members), 2)
		for _, m := range members {
			assert.Same(t, s, r.Lookup(m))
		}
	}
}
