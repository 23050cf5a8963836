package queue

import (
	"fmt"
	"strconv"
)

// QRJob asks a worker to render the QR image of one link.
type QRJob struct {
	JobID     string
	LinkID    int64
	ShortCode string
	ShortURL  string
	Attempt   int
}

func (j QRJob) values() map[string]interface{} {
	return map[string]interface{}{
		"job_id":     j.JobID,
		"link_id":    j.LinkID,
		"short_code": j.ShortCode,
		"short_url":  j.ShortURL,
		"attempt":    j.Attempt,
	}
}

func decodeJob(values map[string]interface{}) (QRJob, error) {
	str := func(key string) (string, error) {
		v, ok := values[key].(string)
		if !ok || v == "" {
			return "", fmt.Errorf("missing field %q", key)
		}
		return v, nil
	}

	var job QRJob
	var err error

	if job.JobID, err = str("job_id"); err != nil {
		return QRJob{}, err
	}
	if job.ShortURL, err = str("short_url"); err != nil {
		return QRJob{}, err
	}
	job.ShortCode, _ = values["short_code"].(string)

	rawID, err := str("link_id")
	if err != nil {
		return QRJob{}, err
	}
	if job.LinkID, err = strconv.ParseInt(rawID, 10, 64); err != nil || job.LinkID <= 0 {
		return QRJob{}, fmt.Errorf("invalid link_id %q", rawID)
	}

	if rawAttempt, ok := values["attempt"].(string); ok && rawAttempt != "" {
		if job.Attempt, err = strconv.Atoi(rawAttempt); err != nil || job.Attempt < 0 {
			return QRJob{}, fmt.Errorf("invalid attempt %q", rawAttempt)
		}
	}

	return job, nil
}

// shouldRetry reports whether a job that just failed on attempt gets another run.
func shouldRetry(attempt, maxAttempts int) bool {
	return attempt+1 < maxAttempts
}
