package repo_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshkolte01/tutor-bot/internal/model"
	appErr "github.com/harshkolte01/tutor-bot/internal/pkg/errors"
	"github.com/harshkolte01/tutor-bot/internal/pkg/timeutil"
	"github.com/harshkolte01/tutor-bot/internal/repo"
	"github.com/harshkolte01/tutor-bot/test/testutil"
)

func seedUser(t *testing.T, conn *sql.DB, userID string) {
	t.Helper()
	// cascade wipes documents, ingestions and chunks from earlier runs
	_, err := conn.Exec("DELETE FROM users WHERE id = $1", userID)
	require.NoError(t, err)
	users := repo.NewUserRepo(conn)
	now := timeutil.NowUnix()
	require.NoError(t, users.Create(context.Background(), &model.User{
		ID:           userID,
		Email:        userID + "@example.com",
		PasswordHash: "x",
		Ctime:        now,
		Mtime:        now,
	}))
}

func TestDocumentRepoCRUDAndIsolation(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	seedUser(t, conn, "docrepo-user-1")
	seedUser(t, conn, "docrepo-user-2")

	docs := repo.NewDocumentRepo(conn)
	doc := &model.Document{
		ID:         "docrepo-doc-1",
		UserID:     "docrepo-user-1",
		Title:      "lecture notes",
		SourceType: model.SourceTypeUpload,
		Filename:   "notes.pdf",
		MimeType:   "application/pdf",
		CreatedAt:  timeutil.NowUnix(),
	}
	require.NoError(t, docs.Create(context.Background(), doc))

	fetched, err := docs.GetByID(context.Background(), "docrepo-user-1", "docrepo-doc-1")
	require.NoError(t, err)
	require.Equal(t, "lecture notes", fetched.Title)
	require.Equal(t, "notes.pdf", fetched.Filename)
	require.Empty(t, fetched.CurrentIngestionID)

	_, err = docs.GetByID(context.Background(), "docrepo-user-2", "docrepo-doc-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	listed, err := docs.List(context.Background(), "docrepo-user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	count, err := docs.Count(context.Background(), "docrepo-user-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, docs.SoftDelete(context.Background(), "docrepo-user-1", "docrepo-doc-1"))
	_, err = docs.GetByID(context.Background(), "docrepo-user-1", "docrepo-doc-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, docs.SoftDelete(context.Background(), "docrepo-user-1", "docrepo-doc-1"), appErr.ErrNotFound)
}

func TestUserRepoDuplicateEmail(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	seedUser(t, conn, "docrepo-user-3")
	users := repo.NewUserRepo(conn)
	now := timeutil.NowUnix()
	err := users.Create(context.Background(), &model.User{
		ID:           "docrepo-user-3b",
		Email:        "docrepo-user-3@example.com",
		PasswordHash: "x",
		Ctime:        now,
		Mtime:        now,
	})
	require.ErrorIs(t, err, appErr.ErrConflict)
}
