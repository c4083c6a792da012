// internal/workers/jobs/jobs.go
package jobs

import (
	"context"
	"time"

	"admissions-portal/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const commandTimeout = 10 * time.Second

// Complete reports success and hands output back to the process as variables.
func Complete(client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"error":  err,
			"jobKey": job.Key,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"error":  err,
			"jobKey": job.Key,
		})
	}
}

// Fail hands the job back for another attempt while retries remain; a
// non-retryable failure is thrown as a BPMN error so the process can branch on errorCode.
func Fail(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retryable bool, log logger.Logger) {
	log.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retryable":    retryable,
		"retriesLeft":  job.Retries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if retryable && job.Retries > 1 {
		_, err := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(job.Retries - 1).
			ErrorMessage(errorCode + ": " + errorMessage).
			Send(ctx)
		if err != nil {
			log.Error("failed to send fail job command", map[string]interface{}{"error": err})
		}
		return
	}

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(ctx)
	if err != nil {
		log.Error("failed to throw error", map[string]interface{}{"error": err})
	}
}
