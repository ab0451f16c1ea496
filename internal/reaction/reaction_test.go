package reaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/model"
	"github.com/dukerupert/choreday/internal/store"
)

func setupTaskDB(t *testing.T, db *docstore.DB) (*Toggler, *store.TaskStore, string) {
	t.Helper()
	t.Cleanup(func() { db.Close() })
	tasks := store.NewTaskStore(db)
	task, err := tasks.Create(context.Background(), "fam1", "creator", "", "dishes", "2024-03-12")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return NewToggler(db), tasks, task.ID
}

func stampCount(t *testing.T, db docstore.Store, taskID, kind string) int {
	t.Helper()
	snaps, err := db.Query(context.Background(), docstore.Collection(store.TaskPath(taskID)+"/stamps").
		Where("type", docstore.Equal, kind))
	if err != nil {
		t.Fatalf("query stamps: %v", err)
	}
	return len(snaps)
}

func TestToggleThanksScenario(t *testing.T) {
	db, err := docstore.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	toggler, tasks, taskID := setupTaskDB(t, db)
	ctx := context.Background()

	outcome, err := toggler.Toggle(ctx, taskID, "u1", model.ReactionThanks)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if outcome != Added {
		t.Errorf("outcome = %q, want added", outcome)
	}
	task, _ := tasks.GetByID(ctx, taskID)
	if task.Reactions[model.ReactionThanks] != 1 || task.ThanksCount != 1 {
		t.Errorf("reactions.thanks = %d thanksCount = %d, want 1/1", task.Reactions[model.ReactionThanks], task.ThanksCount)
	}

	snap, err := db.Get(ctx, store.StampPath(taskID, "u1_thanks"))
	if err != nil {
		t.Fatalf("get stamp: %v", err)
	}
	var stamp model.Stamp
	if err := snap.DataTo(&stamp); err != nil {
		t.Fatalf("decode stamp: %v", err)
	}
	if stamp.Type != "thanks" || stamp.FromUserID != "u1" || stamp.TaskID != taskID || stamp.DateKey != "2024-03-12" {
		t.Errorf("stamp = %+v", stamp)
	}
	if stamp.CreatedAt == nil {
		t.Error("expected stamp createdAt")
	}

	outcome, err = toggler.Toggle(ctx, taskID, "u1", model.ReactionThanks)
	if err != nil {
		t.Fatalf("toggle again: %v", err)
	}
	if outcome != Removed {
		t.Errorf("outcome = %q, want removed", outcome)
	}
	task, _ = tasks.GetByID(ctx, taskID)
	if task.Reactions[model.ReactionThanks] != 0 || task.ThanksCount != 0 {
		t.Errorf("reactions.thanks = %d thanksCount = %d, want 0/0", task.Reactions[model.ReactionThanks], task.ThanksCount)
	}
	if n := stampCount(t, db, taskID, "thanks"); n != 0 {
		t.Errorf("stamps = %d, want 0", n)
	}
}

func TestToggleInvolution(t *testing.T) {
	toggler, tasks, taskID := setupTaskDB(t, docstore.NewMemory())
	ctx := context.Background()

	for _, kind := range model.ReactionKinds {
		before, _ := tasks.GetByID(ctx, taskID)
		for i := 0; i < 2; i++ {
			if _, err := toggler.Toggle(ctx, taskID, "u1", kind); err != nil {
				t.Fatalf("toggle %s: %v", kind, err)
			}
		}
		after, _ := tasks.GetByID(ctx, taskID)
		if after.Reactions[kind] != before.Reactions[kind] {
			t.Errorf("%s count = %d, want %d", kind, after.Reactions[kind], before.Reactions[kind])
		}
		if n := stampCount(t, toggler.db, taskID, kind); n != 0 {
			t.Errorf("%s stamps = %d, want 0", kind, n)
		}
	}

	task, _ := tasks.GetByID(ctx, taskID)
	if task.ThanksCount != 0 {
		t.Errorf("thanksCount = %d, want 0", task.ThanksCount)
	}
}

func TestToggleOnlyThanksMirrorsLegacyCounter(t *testing.T) {
	toggler, tasks, taskID := setupTaskDB(t, docstore.NewMemory())
	ctx := context.Background()

	if _, err := toggler.Toggle(ctx, taskID, "u1", model.ReactionParty); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	task, _ := tasks.GetByID(ctx, taskID)
	if task.Reactions[model.ReactionParty] != 1 {
		t.Errorf("party = %d, want 1", task.Reactions[model.ReactionParty])
	}
	if task.ThanksCount != 0 {
		t.Errorf("thanksCount = %d, want 0", task.ThanksCount)
	}
}

func TestToggleCounterMatchesStamps(t *testing.T) {
	toggler, tasks, taskID := setupTaskDB(t, docstore.NewMemory())
	ctx := context.Background()

	steps := []struct{ user, kind string }{
		{"u1", "thanks"}, {"u2", "thanks"}, {"u1", "like"}, {"u3", "thanks"},
		{"u2", "thanks"}, {"u1", "like"}, {"u2", "party-popper"}, {"u1", "thanks"},
	}
	for _, s := range steps {
		if _, err := toggler.Toggle(ctx, taskID, s.user, s.kind); err != nil {
			t.Fatalf("toggle %s/%s: %v", s.user, s.kind, err)
		}
	}

	task, _ := tasks.GetByID(ctx, taskID)
	for _, kind := range []string{"thanks", "like", "party-popper"} {
		if got, want := task.Reactions[kind], stampCount(t, toggler.db, taskID, kind); got != want {
			t.Errorf("%s count = %d, stamps = %d", kind, got, want)
		}
	}
	if task.Reactions["thanks"] != 1 || task.ThanksCount != 1 {
		t.Errorf("thanks = %d thanksCount = %d, want 1/1", task.Reactions["thanks"], task.ThanksCount)
	}
}

func TestToggleConcurrentUsers(t *testing.T) {
	toggler, tasks, taskID := setupTaskDB(t, docstore.NewMemory(docstore.WithMaxAttempts(50)))
	ctx := context.Background()

	const users = 20
	var wg sync.WaitGroup
	errs := make(chan error, users*2)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			if _, err := toggler.Toggle(ctx, taskID, user, "thanks"); err != nil {
				errs <- err
			}
			if _, err := toggler.Toggle(ctx, taskID, user, "heart"); err != nil {
				errs <- err
			}
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("toggle: %v", err)
	}

	task, _ := tasks.GetByID(ctx, taskID)
	if task.Reactions["thanks"] != users || task.ThanksCount != users || task.Reactions["heart"] != users {
		t.Errorf("reactions = %v thanksCount = %d, want %d each", task.Reactions, task.ThanksCount, users)
	}
	if n := stampCount(t, toggler.db, taskID, "thanks"); n != users {
		t.Errorf("thanks stamps = %d, want %d", n, users)
	}
}

func TestToggleSameUserRace(t *testing.T) {
	toggler, tasks, taskID := setupTaskDB(t, docstore.NewMemory(docstore.WithMaxAttempts(50)))
	ctx := context.Background()

	outcomes := make(chan Outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := toggler.Toggle(ctx, taskID, "u1", "thanks")
			if err != nil {
				t.Errorf("toggle: %v", err)
				return
			}
			outcomes <- o
		}()
	}
	wg.Wait()
	close(outcomes)

	seen := map[Outcome]int{}
	for o := range outcomes {
		seen[o]++
	}
	if seen[Added] != 1 || seen[Removed] != 1 {
		t.Errorf("outcomes = %v, want one added and one removed", seen)
	}
	task, _ := tasks.GetByID(ctx, taskID)
	if task.Reactions["thanks"] != 0 || task.ThanksCount != 0 {
		t.Errorf("thanks = %d thanksCount = %d, want 0/0", task.Reactions["thanks"], task.ThanksCount)
	}
	if n := stampCount(t, toggler.db, taskID, "thanks"); n != 0 {
		t.Errorf("stamps = %d, want 0", n)
	}
}

func TestToggleRejectsInvalidKind(t *testing.T) {
	toggler, _, taskID := setupTaskDB(t, docstore.NewMemory())

	for _, kind := range []string{"", "a/b", "a.b", "a_b"} {
		_, err := toggler.Toggle(context.Background(), taskID, "u1", kind)
		if !errors.Is(err, ErrInvalidKind) {
			t.Errorf("kind %q: err = %v, want ErrInvalidKind", kind, err)
		}
	}
}

func TestToggleUnderscoreUserCannotAliasStamp(t *testing.T) {
	toggler, tasks, taskID := setupTaskDB(t, docstore.NewMemory())
	ctx := context.Background()

	// "a_b" + "c" and "a" + "b_c" would share the stamp id "a_b_c".
	if _, err := toggler.Toggle(ctx, taskID, "a_b", "c"); err != nil {
		t.Fatalf("toggle a_b/c: %v", err)
	}
	if _, err := toggler.Toggle(ctx, taskID, "a", "b_c"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("toggle a/b_c: err = %v, want ErrInvalidKind", err)
	}

	task, _ := tasks.GetByID(ctx, taskID)
	if task.Reactions["c"] != 1 || task.Reactions["b_c"] != 0 {
		t.Errorf("reactions = %v, want c:1 only", task.Reactions)
	}
	if n := stampCount(t, toggler.db, taskID, "c"); n != 1 {
		t.Errorf("stamps of c = %d, want 1", n)
	}
}

func TestToggleRefusesForeignStamp(t *testing.T) {
	toggler, tasks, taskID := setupTaskDB(t, docstore.NewMemory())
	ctx := context.Background()

	if _, err := toggler.Toggle(ctx, taskID, "u2", model.ReactionLike); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	// A document at u1's thanks id written by someone else.
	err := toggler.db.Set(ctx, store.StampPath(taskID, model.StampID("u1", model.ReactionThanks)), docstore.Fields{
		"type":       model.ReactionLike,
		"fromUserId": "u2",
		"taskId":     taskID,
	})
	if err != nil {
		t.Fatalf("seed stamp: %v", err)
	}

	_, err = toggler.Toggle(ctx, taskID, "u1", model.ReactionThanks)
	if !errors.Is(err, ErrStampConflict) {
		t.Fatalf("err = %v, want ErrStampConflict", err)
	}
	task, _ := tasks.GetByID(ctx, taskID)
	if task.Reactions[model.ReactionThanks] != 0 || task.ThanksCount != 0 {
		t.Errorf("thanks = %d thanksCount = %d, want 0/0", task.Reactions[model.ReactionThanks], task.ThanksCount)
	}
	if task.Reactions[model.ReactionLike] != 1 {
		t.Errorf("reactions.like = %d, want 1", task.Reactions[model.ReactionLike])
	}
}

func TestToggleMissingTask(t *testing.T) {
	toggler, _, _ := setupTaskDB(t, docstore.NewMemory())

	_, err := toggler.Toggle(context.Background(), "missing", "u1", "thanks")
	if !errors.Is(err, store.ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestMyReactions(t *testing.T) {
	db := docstore.NewMemory()
	toggler, tasks, first := setupTaskDB(t, db)
	ctx := context.Background()

	second, err := tasks.Create(ctx, "fam1", "creator", "", "laundry", "2024-03-12")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	for _, step := range []struct{ task, user, kind string }{
		{first, "u1", "thanks"},
		{second.ID, "u1", "thanks"},
		{second.ID, "u1", "like"},
		{first, "u2", "thanks"},
	} {
		if _, err := toggler.Toggle(ctx, step.task, step.user, step.kind); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}

	ids, err := toggler.MyReactions(ctx, "u1", "thanks")
	if err != nil {
		t.Fatalf("my reactions: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 tasks", ids)
	}
	seen := map[string]bool{ids[0]: true, ids[1]: true}
	if !seen[first] || !seen[second.ID] {
		t.Errorf("ids = %v, want %s and %s", ids, first, second.ID)
	}

	likes, err := toggler.MyReactions(ctx, "u2", "like")
	if err != nil {
		t.Fatalf("my reactions: %v", err)
	}
	if len(likes) != 0 {
		t.Errorf("likes = %v, want none", likes)
	}
}
