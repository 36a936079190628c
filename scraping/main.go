package scraping

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"dev.hon.one/niobium/common"
)

// DeviceCollector - Collects a single device.
type DeviceCollector interface {
	Collect(ctx context.Context, credential common.DeviceCredential) (common.CollectionOutcome, error)
}

// Recorder - Receives every device outcome of a batch as soon as it's known.
type Recorder interface {
	RecordOutcome(runID string, outcome common.CollectionOutcome)
}

// Batch - Collects a list of devices, one at a time.
type Batch struct {
	Collector DeviceCollector
	Recorders []Recorder
}

// Result - Everything collected by a batch run.
type Result struct {
	RunID     string
	Summaries []common.DeviceSummary // One per credential, in input order
	Tables    []common.DeviceTable   // One per successful device, in input order
	StartTime time.Time
	Duration  time.Duration
}

// Run - Collect all devices in order. Only failures not attributable to a device abort the run.
func (batch *Batch) Run(ctx context.Context, credentials []common.DeviceCredential) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Summaries: make([]common.DeviceSummary, 0, len(credentials)),
		StartTime: time.Now(),
	}
	runLog := log.WithFields(log.Fields{
		"run_id":  result.RunID,
		"devices": len(credentials),
	})
	runLog.Info("Starting collection")

	for _, credential := range credentials {
		log.WithFields(log.Fields{
			"run_id": result.RunID,
			"device": credential.Address,
		}).Trace("Collecting device")

		outcome, err := batch.Collector.Collect(ctx, credential)
		if err != nil {
			runLog.WithError(err).WithField("device", credential.Address).Error("Collection aborted")
			return nil, err
		}

		result.Summaries = append(result.Summaries, outcome.Summary)
		if outcome.Summary.Status == common.StatusSuccess {
			result.Tables = append(result.Tables, common.DeviceTable{
				Hostname:   outcome.Hostname,
				Address:    outcome.Summary.Address,
				Interfaces: outcome.Interfaces,
			})
		}
		for _, recorder := range batch.Recorders {
			recorder.RecordOutcome(result.RunID, outcome)
		}
	}

	result.Duration = time.Since(result.StartTime)
	runLog.WithFields(log.Fields{
		"successful": len(result.Tables),
		"duration":   result.Duration,
	}).Info("Collection finished")
	return result, nil
}
