package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/vidchat_go_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	return r.db.Create(job).Error
}

// GetByID 按 (任务ID, 所有者) 查询。别人的任务等同于不存在，
// 这是权限边界，不单独报 403。
func (r *JobRepository) GetByID(id string, userID int64) (*model.Job, error) {
	var job model.Job
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByUser 按创建时间倒序返回用户的全部任务
func (r *JobRepository) ListByUser(userID int64) ([]*model.Job, error) {
	var jobs []*model.Job
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) Update(job *model.Job) error {
	return r.db.Save(job).Error
}

// ClaimProcessing 以 CAS 方式把任务从可处理状态（PENDING/ACTIVE）置为 PROCESSING。
// 返回 false 表示任务不存在、不属于该用户、或已被并发触发的处理占用。
func (r *JobRepository) ClaimProcessing(id string, userID int64) (bool, error) {
	result := r.db.Model(&model.Job{}).
		Where("id = ? AND user_id = ? AND status IN ?", id, userID,
			[]string{model.JobStatusPending, model.JobStatusActive}).
		Update("status", model.JobStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkActive 处理成功：置为 ACTIVE 并清除上次的错误信息
func (r *JobRepository) MarkActive(id string, userID int64) error {
	return r.db.Model(&model.Job{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"status":        model.JobStatusActive,
			"error_message": nil,
		}).Error
}

// MarkError 处理失败：置为 ERROR 并记录错误信息
func (r *JobRepository) MarkError(id string, userID int64, errMsg string) error {
	return r.db.Model(&model.Job{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"status":        model.JobStatusError,
			"error_message": errMsg,
		}).Error
}

// ResetPending 用户追加新消息时把 ACTIVE/ERROR 的任务重置回 PENDING
func (r *JobRepository) ResetPending(id string, userID int64) error {
	return r.db.Model(&model.Job{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", model.JobStatusPending).Error
}

// UpdateAgent 更新当前负责的 agent（handoff 时调用），不改变状态
func (r *JobRepository) UpdateAgent(id string, userID int64, agentName string) error {
	return r.db.Model(&model.Job{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("current_agent", agentName).Error
}

// Delete 删除用户自己的任务，返回是否真的删到了行
func (r *JobRepository) Delete(id string, userID int64) (bool, error) {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Job{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Exists 任务是否存在（不限所有者，cleanup 用）
func (r *JobRepository) Exists(id string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Job{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ListErrorJobIDsBefore 返回更新时间早于 cutoff 的 ERROR 任务 ID（cleanup 用）
func (r *JobRepository) ListErrorJobIDsBefore(cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.Job{}).
		Where("status = ? AND updated_at < ?", model.JobStatusError, cutoff).
		Pluck("id", &ids).Error
	return ids, err
}
