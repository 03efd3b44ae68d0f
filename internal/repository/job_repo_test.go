package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vidchat_go_server/internal/model"
	"github.com/qs3c/vidchat_go_server/internal/testutil"
)

func TestJobRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)

	t.Run("assigns id and pending status", func(t *testing.T) {
		job := &model.Job{
			UserID: user.ID,
			Title:  "新对话",
			Prompt: "hello",
		}
		err := repo.Create(job)
		require.NoError(t, err)

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, model.JobStatusPending, job.Status)
	})

	t.Run("keeps provided id", func(t *testing.T) {
		job := &model.Job{
			ID:     "fixed-id-123",
			UserID: user.ID,
			Title:  "固定 ID",
			Status: model.JobStatusActive,
		}
		err := repo.Create(job)
		require.NoError(t, err)
		assert.Equal(t, "fixed-id-123", job.ID)
		assert.Equal(t, model.JobStatusActive, job.Status)
	})
}

func TestJobRepository_GetByID_OwnershipScoped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	owner := testutil.TestUser(t, db, testutil.WithEmail("owner@example.com"))
	stranger := testutil.TestUser(t, db, testutil.WithEmail("stranger@example.com"))
	job := testutil.TestJob(t, db, owner.ID, model.JobStatusPending)

	found, err := repo.GetByID(job.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)

	// 别人的任务等同于不存在
	_, err = repo.GetByID(job.ID, stranger.ID)
	assert.Error(t, err)

	_, err = repo.GetByID("nonexistent", owner.ID)
	assert.Error(t, err)
}

func TestJobRepository_ListByUser_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db, testutil.WithEmail("other@example.com"))

	old := testutil.TestJob(t, db, user.ID, model.JobStatusActive)
	db.Model(old).Update("created_at", time.Now().Add(-time.Hour))
	newer := testutil.TestJob(t, db, user.ID, model.JobStatusPending)
	testutil.TestJob(t, db, other.ID, model.JobStatusPending)

	jobs, err := repo.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, newer.ID, jobs[0].ID)
	assert.Equal(t, old.ID, jobs[1].ID)
}

func TestJobRepository_ClaimProcessing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)

	t.Run("claims pending job", func(t *testing.T) {
		job := testutil.TestJob(t, db, user.ID, model.JobStatusPending)

		claimed, err := repo.ClaimProcessing(job.ID, user.ID)
		require.NoError(t, err)
		assert.True(t, claimed)

		updated, err := repo.GetByID(job.ID, user.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusProcessing, updated.Status)
	})

	t.Run("claims active job for continuation", func(t *testing.T) {
		job := testutil.TestJob(t, db, user.ID, model.JobStatusActive)

		claimed, err := repo.ClaimProcessing(job.ID, user.ID)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("second claim loses", func(t *testing.T) {
		job := testutil.TestJob(t, db, user.ID, model.JobStatusPending)

		first, err := repo.ClaimProcessing(job.ID, user.ID)
		require.NoError(t, err)
		require.True(t, first)

		second, err := repo.ClaimProcessing(job.ID, user.ID)
		require.NoError(t, err)
		assert.False(t, second)
	})

	t.Run("error job cannot be claimed without reset", func(t *testing.T) {
		job := testutil.TestJob(t, db, user.ID, model.JobStatusError,
			testutil.WithErrorMessage("boom"))

		claimed, err := repo.ClaimProcessing(job.ID, user.ID)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("foreign job cannot be claimed", func(t *testing.T) {
		other := testutil.TestUser(t, db, testutil.WithEmail("claim-other@example.com"))
		job := testutil.TestJob(t, db, other.ID, model.JobStatusPending)

		claimed, err := repo.ClaimProcessing(job.ID, user.ID)
		require.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestJobRepository_MarkActive_ClearsError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	job := testutil.TestJob(t, db, user.ID, model.JobStatusProcessing,
		testutil.WithErrorMessage("ADK service unavailable: timeout"))

	err := repo.MarkActive(job.ID, user.ID)
	require.NoError(t, err)

	updated, err := repo.GetByID(job.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusActive, updated.Status)
	assert.Nil(t, updated.ErrorMessage)
}

func TestJobRepository_MarkError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	job := testutil.TestJob(t, db, user.ID, model.JobStatusProcessing)

	err := repo.MarkError(job.ID, user.ID, "agent runtime unavailable: dial tcp refused")
	require.NoError(t, err)

	updated, err := repo.GetByID(job.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusError, updated.Status)
	require.NotNil(t, updated.ErrorMessage)
	assert.Contains(t, *updated.ErrorMessage, "agent runtime unavailable")
}

func TestJobRepository_ResetPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	job := testutil.TestJob(t, db, user.ID, model.JobStatusError,
		testutil.WithErrorMessage("boom"))

	err := repo.ResetPending(job.ID, user.ID)
	require.NoError(t, err)

	updated, err := repo.GetByID(job.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, updated.Status)
	// 错误信息保留到下一次成功处理
	require.NotNil(t, updated.ErrorMessage)
}

func TestJobRepository_UpdateAgent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	job := testutil.TestJob(t, db, user.ID, model.JobStatusActive)

	err := repo.UpdateAgent(job.ID, user.ID, "video_agent")
	require.NoError(t, err)

	updated, err := repo.GetByID(job.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "video_agent", updated.CurrentAgent)
	// 状态不受影响
	assert.Equal(t, model.JobStatusActive, updated.Status)
}

func TestJobRepository_Exists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)
	job := testutil.TestJob(t, db, user.ID, model.JobStatusPending)

	exists, err := repo.Exists(job.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists("missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestJobRepository_ListErrorJobIDsBefore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	user := testutil.TestUser(t, db)

	stale := testutil.TestJob(t, db, user.ID, model.JobStatusError,
		testutil.WithErrorMessage("old failure"))
	db.Model(stale).Update("updated_at", time.Now().Add(-48*time.Hour))

	testutil.TestJob(t, db, user.ID, model.JobStatusError,
		testutil.WithErrorMessage("fresh failure"))
	testutil.TestJob(t, db, user.ID, model.JobStatusActive)

	ids, err := repo.ListErrorJobIDsBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, stale.ID, ids[0])
}
