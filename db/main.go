package db

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	log "github.com/sirupsen/logrus"

	"dev.hon.one/niobium/common"
	"dev.hon.one/niobium/util"
)

// HealthCheckTimeout - How long to wait for the database before running without it.
const HealthCheckTimeout = 5 * time.Second

var clientMutex sync.Mutex
var client influxdb2.Client
var clientWriteAPI influxdb2api.WriteAPI

// StartClient - Start DB client. Does nothing and returns false if no DB is configured or it's not up.
// Collection results are stored while the client runs.
func StartClient(waitGroup *sync.WaitGroup, shutdown *util.ShutdownChannelDistributor) bool {
	if common.GlobalConfig.InfluxDBURL == "" {
		return false
	}

	// Setup shutdown signal and waitgroup
	shutdownChannel := make(chan bool, 1)
	if !shutdown.AddListener(shutdownChannel) {
		return false
	}

	newClient := influxdb2.NewClient(common.GlobalConfig.InfluxDBURL, common.GlobalConfig.InfluxDBToken)
	if !checkDBUp(newClient) {
		newClient.Close()
		// Still consume the signal
		go func() { <-shutdownChannel }()
		return false
	}

	// Setup async write API and error logging
	asyncWriteAPI := newClient.WriteAPI(common.GlobalConfig.InfluxDBOrg, common.GlobalConfig.InfluxDBBucket)
	writeAPIErrors := asyncWriteAPI.Errors()
	go func() {
		for err := range writeAPIErrors {
			log.WithError(err).Error("Failed to write to database")
		}
	}()

	clientMutex.Lock()
	client = newClient
	clientWriteAPI = asyncWriteAPI
	clientMutex.Unlock()

	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		<-shutdownChannel
		clientMutex.Lock()
		localClient := client
		localWriteAPI := clientWriteAPI
		client = nil
		clientWriteAPI = nil
		clientMutex.Unlock()
		localWriteAPI.Flush()
		localClient.Close()
		log.Info("DB client stopped")
	}()

	log.Info("DB client started: ", common.GlobalConfig.InfluxDBURL)
	return true
}

func checkDBUp(client influxdb2.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), HealthCheckTimeout)
	defer cancel()
	_, err := client.Health(ctx)
	if err != nil {
		log.WithError(err).Warn("Database not reachable, collection results will not be stored")
		return false
	}
	return true
}

func writePoints(points []*write.Point) {
	clientMutex.Lock()
	defer clientMutex.Unlock()
	if clientWriteAPI == nil {
		return
	}
	for _, point := range points {
		clientWriteAPI.WritePoint(point)
	}
}

// Recorder - Stores every collection outcome it receives in the DB, if the client is running.
type Recorder struct{}

// RecordOutcome - Store the collection result, identity and L2/L3 entries of one device.
func (Recorder) RecordOutcome(runID string, outcome common.CollectionOutcome) {
	StoreCollectionEntry(runID, outcome)
	StoreDeviceIdentityEntry(runID, outcome)
	StoreL2DeviceEntries(runID, outcome)
	StoreL3DeviceEntries(runID, outcome)
}

// StoreCollectionEntry - Attempt to store the status and duration of a device collection in the DB.
func StoreCollectionEntry(runID string, outcome common.CollectionOutcome) {
	log.WithFields(log.Fields{
		"run_id":   runID,
		"device":   outcome.Summary.Address,
		"status":   outcome.Summary.Status,
		"duration": outcome.Duration,
	}).Trace("Collection entry")
	writePoints([]*write.Point{newCollectionPoint(runID, outcome)})
}

// StoreDeviceIdentityEntry - Attempt to store the identity of a device in the DB, if it was found.
func StoreDeviceIdentityEntry(runID string, outcome common.CollectionOutcome) {
	point := newDeviceIdentityPoint(runID, outcome)
	if point == nil {
		return
	}
	log.WithFields(log.Fields{
		"run_id":   runID,
		"device":   outcome.Summary.Address,
		"hostname": outcome.Summary.Hostname,
		"serial":   outcome.Summary.SerialNumber,
	}).Trace("Device identity entry")
	writePoints([]*write.Point{point})
}

// StoreL2DeviceEntries - Attempt to store every MAC address seen on the device's interfaces in the DB.
func StoreL2DeviceEntries(runID string, outcome common.CollectionOutcome) {
	points := newL2DevicePoints(runID, outcome)
	log.WithFields(log.Fields{
		"run_id":  runID,
		"device":  outcome.Summary.Address,
		"entries": len(points),
	}).Trace("L2 device entries")
	writePoints(points)
}

// StoreL3DeviceEntries - Attempt to store every resolved MAC/IP pair in the DB.
func StoreL3DeviceEntries(runID string, outcome common.CollectionOutcome) {
	points := newL3DevicePoints(runID, outcome)
	log.WithFields(log.Fields{
		"run_id":  runID,
		"device":  outcome.Summary.Address,
		"entries": len(points),
	}).Trace("L3 device entries")
	writePoints(points)
}

func newCollectionPoint(runID string, outcome common.CollectionOutcome) *write.Point {
	return influxdb2.NewPointWithMeasurement("collection").
		AddTag("device", outcome.Summary.Address).
		AddTag("run_id", runID).
		AddTag("status", string(outcome.Summary.Status)).
		AddField("duration_seconds", outcome.Duration.Seconds()).
		AddField("interfaces", len(outcome.Interfaces)).
		AddField("success", outcome.Summary.Status == common.StatusSuccess).
		SetTime(outcome.StartTime)
}

func newDeviceIdentityPoint(runID string, outcome common.CollectionOutcome) *write.Point {
	summary := outcome.Summary
	if summary.SerialNumber == "" {
		return nil
	}
	return influxdb2.NewPointWithMeasurement("device_identity").
		AddTag("device", summary.Address).
		AddTag("run_id", runID).
		AddField("product_id", summary.ProductID).
		AddField("serial_number", summary.SerialNumber).
		AddField("firmware_image", summary.FirmwareImage).
		AddField("hostname", summary.Hostname).
		SetTime(outcome.StartTime)
}

func newL2DevicePoints(runID string, outcome common.CollectionOutcome) []*write.Point {
	var points []*write.Point
	for _, record := range outcome.Interfaces {
		for _, binding := range record.Bindings {
			point := influxdb2.NewPointWithMeasurement("l2_device").
				AddTag("device", outcome.Summary.Address).
				AddTag("l2_interface", record.Name).
				AddTag("mac_address", binding.MAC).
				AddTag("run_id", runID).
				AddField("vlan", record.VLAN).
				AddField("link_status", record.LinkStatus).
				AddField("description", record.Description).
				SetTime(outcome.StartTime)
			points = append(points, point)
		}
	}
	return points
}

func newL3DevicePoints(runID string, outcome common.CollectionOutcome) []*write.Point {
	var points []*write.Point
	for _, record := range outcome.Interfaces {
		if !record.Resolved {
			continue
		}
		for _, binding := range record.Bindings {
			if binding.IP == "" {
				continue
			}
			point := influxdb2.NewPointWithMeasurement("l3_device").
				AddTag("device", outcome.Summary.Address).
				AddTag("l2_interface", record.Name).
				AddTag("mac_address", binding.MAC).
				AddTag("run_id", runID).
				AddField("ip_address", binding.IP).
				SetTime(outcome.StartTime)
			points = append(points, point)
		}
	}
	return points
}
