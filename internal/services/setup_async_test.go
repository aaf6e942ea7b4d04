package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/ragflow-setup/internal/adapter"
	"github.com/fyerfyer/ragflow-setup/internal/document"
	"github.com/fyerfyer/ragflow-setup/internal/models"
	"github.com/fyerfyer/ragflow-setup/internal/ragflow"
	"github.com/fyerfyer/ragflow-setup/pkg/storage"
	"github.com/fyerfyer/ragflow-setup/pkg/taskqueue"
)

func setupTestQueue(t *testing.T) *taskqueue.RedisQueue {
	mr := miniredis.RunT(t)
	queue, err := taskqueue.NewRedisQueueWithLogger(&taskqueue.Config{RedisAddr: mr.Addr()}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = queue.Close() })
	return queue
}

func newAsyncService(t *testing.T, client RagflowClient) (*SetupService, storage.Storage) {
	queue := setupTestQueue(t)
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	svc := NewSetupService(client,
		WithRunRepository(setupTestRepo(t)),
		WithStorage(store),
		WithTaskQueue(queue),
		WithSetupLogger(quietLogger()),
	)
	return svc, store
}

func TestEnqueueSetup_RequiresQueueAndStorage(t *testing.T) {
	client := new(mockRagflow)

	svc := NewSetupService(client, WithSetupLogger(quietLogger()))
	assert.False(t, svc.AsyncEnabled())
	_, err := svc.EnqueueSetup(context.Background(), sampleFiles(t))
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	_, err = svc.GetTask(context.Background(), "task-1")
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	svc = NewSetupService(client, WithTaskQueue(setupTestQueue(t)), WithSetupLogger(quietLogger()))
	_, err = svc.EnqueueSetup(context.Background(), sampleFiles(t))
	assert.ErrorIs(t, err, ErrStorageRequired)
}

func TestEnqueueSetup_RejectsInvalidFiles(t *testing.T) {
	svc, store := newAsyncService(t, new(mockRagflow))

	_, err := svc.EnqueueSetup(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = svc.EnqueueSetup(context.Background(), []SourceFile{{Name: "bad.pdf", Content: []byte("not a pdf")}})
	var inspectErr *document.InspectError
	assert.ErrorAs(t, err, &inspectErr)

	archived, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestEnqueueSetup_ProcessedByHandler(t *testing.T) {
	client := new(mockRagflow)
	svc, store := newAsyncService(t, client)
	ctx := context.Background()

	queued, err := svc.EnqueueSetup(ctx, sampleFiles(t))
	require.NoError(t, err)
	assert.NotEmpty(t, queued.RunID)
	assert.NotEmpty(t, queued.TaskID)
	assert.Len(t, queued.Files, 2)

	run, _, err := svc.GetRun(queued.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, run.Status)
	assert.True(t, run.Async)
	assert.Equal(t, queued.TaskID, run.TaskID)

	archived, err := store.List(ctx, queued.RunID)
	require.NoError(t, err)
	assert.Len(t, archived, 2)

	task, err := svc.GetTask(ctx, queued.TaskID)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.TaskSetupSystem, task.Type)
	assert.Equal(t, queued.RunID, task.RunID)

	client.On("CreateDataset", mock.Anything, mock.Anything).Return(&ragflow.Dataset{ID: "ds-1"}, nil).Once()
	client.On("UploadDocuments", mock.Anything, "ds-1", mock.MatchedBy(func(files []ragflow.UploadFile) bool {
		return len(files) == 2 && files[0].Name == "q4.pdf" && len(files[0].Content) > 0
	})).Return([]ragflow.Document{{ID: "doc-1", Name: "q4.pdf"}, {ID: "doc-2", Name: "notes.md"}}, nil).Once()
	client.On("ParseDocuments", mock.Anything, "ds-1", []string{"doc-1", "doc-2"}).Return(nil).Once()
	client.On("CreateChatAssistant", mock.Anything, mock.Anything).Return(&ragflow.ChatAssistant{ID: "chat-1"}, nil).Once()

	handler := NewSetupTaskHandler(svc)
	assert.Equal(t, []taskqueue.TaskType{taskqueue.TaskSetupSystem}, handler.GetTaskTypes())

	out, err := handler.ProcessTask(ctx, task)
	require.NoError(t, err)
	result, ok := out.(*taskqueue.SetupResult)
	require.True(t, ok)
	assert.Equal(t, queued.RunID, result.RunID)
	assert.Equal(t, "ds-1", result.DatasetID)
	assert.Equal(t, "chat-1", result.AssistantID)
	client.AssertExpectations(t)

	run, files, err := svc.GetRun(queued.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	require.Len(t, files, 2)
	paths := []string{archived[0].Path, archived[1].Path}
	assert.Contains(t, paths, files[0].StoragePath)
	assert.Contains(t, paths, files[1].StoragePath)

	// 已归档的文件不会重复保存
	archived, err = store.List(ctx, queued.RunID)
	require.NoError(t, err)
	assert.Len(t, archived, 2)
}

func TestSetupTaskHandler_ErrorClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("server error is retried", func(t *testing.T) {
		client := new(mockRagflow)
		svc, _ := newAsyncService(t, client)

		queued, err := svc.EnqueueSetup(ctx, sampleFiles(t))
		require.NoError(t, err)
		task, err := svc.GetTask(ctx, queued.TaskID)
		require.NoError(t, err)

		client.On("CreateDataset", mock.Anything, mock.Anything).
			Return(nil, &adapter.HTTPError{Method: "POST", Endpoint: "/api/v1/datasets", StatusCode: 503, Message: "busy"}).Once()

		_, err = NewSetupTaskHandler(svc).ProcessTask(ctx, task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
		assert.Equal(t, 503, adapter.StatusCode(err))
	})

	t.Run("client error is permanent", func(t *testing.T) {
		client := new(mockRagflow)
		svc, _ := newAsyncService(t, client)

		queued, err := svc.EnqueueSetup(ctx, sampleFiles(t))
		require.NoError(t, err)
		task, err := svc.GetTask(ctx, queued.TaskID)
		require.NoError(t, err)

		client.On("CreateDataset", mock.Anything, mock.Anything).
			Return(nil, &adapter.HTTPError{Method: "POST", Endpoint: "/api/v1/datasets", StatusCode: 401, Message: "unauthorized"}).Once()

		_, err = NewSetupTaskHandler(svc).ProcessTask(ctx, task)
		assert.ErrorIs(t, err, asynq.SkipRetry)

		run, _, err := svc.GetRun(queued.RunID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusFailed, run.Status)
		assert.Equal(t, models.StepCreateDataset, run.Step)
	})

	t.Run("expired task context is permanent", func(t *testing.T) {
		client := new(mockRagflow)
		svc, _ := newAsyncService(t, client)

		queued, err := svc.EnqueueSetup(ctx, sampleFiles(t))
		require.NoError(t, err)
		task, err := svc.GetTask(ctx, queued.TaskID)
		require.NoError(t, err)

		taskCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		client.On("CreateDataset", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, &adapter.HTTPError{Method: "POST", Endpoint: "/api/v1/datasets", StatusCode: 503, Message: "busy"}).Once()

		_, err = NewSetupTaskHandler(svc).ProcessTask(taskCtx, task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("aborted retry is permanent", func(t *testing.T) {
		client := new(mockRagflow)
		svc, _ := newAsyncService(t, client)

		queued, err := svc.EnqueueSetup(ctx, sampleFiles(t))
		require.NoError(t, err)
		task, err := svc.GetTask(ctx, queued.TaskID)
		require.NoError(t, err)

		client.On("CreateDataset", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: %w", adapter.ErrAborted, context.DeadlineExceeded)).Once()

		_, err = NewSetupTaskHandler(svc).ProcessTask(ctx, task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("missing archive is permanent", func(t *testing.T) {
		client := new(mockRagflow)
		svc, store := newAsyncService(t, client)

		queued, err := svc.EnqueueSetup(ctx, sampleFiles(t))
		require.NoError(t, err)
		task, err := svc.GetTask(ctx, queued.TaskID)
		require.NoError(t, err)

		archived, err := store.List(ctx, queued.RunID)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, archived[0].Path))

		_, err = NewSetupTaskHandler(svc).ProcessTask(ctx, task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		client.AssertNotCalled(t, "CreateDataset", mock.Anything, mock.Anything)
	})

	t.Run("invalid payload is permanent", func(t *testing.T) {
		svc, _ := newAsyncService(t, new(mockRagflow))

		_, err := NewSetupTaskHandler(svc).ProcessTask(ctx, &taskqueue.Task{ID: "t", Type: taskqueue.TaskSetupSystem})
		assert.ErrorIs(t, err, taskqueue.ErrInvalidPayload)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}
