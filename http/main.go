package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"dev.hon.one/niobium/common"
	"dev.hon.one/niobium/util"
)

// StartServer - Start HTTP server in the background, serving the metrics of the gatherer.
func StartServer(waitGroup *sync.WaitGroup, shutdown *util.ShutdownChannelDistributor, gatherer prometheus.Gatherer) {
	shutdownChannel := make(chan bool, 1)
	if !shutdown.AddListener(shutdownChannel) {
		return
	}
	waitGroup.Add(1)

	server := &http.Server{
		Addr:              common.GlobalConfig.HTTPEndpoint,
		Handler:           newServeMux(gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run
	stopped := make(chan struct{})
	go func() {
		defer waitGroup.Done()
		defer close(stopped)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
		}
		log.Info("HTTP server stopped")
	}()

	// Shutdown
	go func() {
		select {
		case <-shutdownChannel:
			shutdownContext, shutdownContextCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownContextCancel()
			server.Shutdown(shutdownContext)
		case <-stopped:
		}
	}()

	log.Infof("HTTP server started: %v", common.GlobalConfig.HTTPEndpoint)
}

func newServeMux(gatherer prometheus.Gatherer) *http.ServeMux {
	var mainServeMux http.ServeMux
	mainServeMux.HandleFunc("/", handleOtherRequest)
	mainServeMux.HandleFunc("/metrics", func(response http.ResponseWriter, request *http.Request) {
		handleMetricsRequest(response, request, gatherer)
	})
	return &mainServeMux
}

func handleOtherRequest(response http.ResponseWriter, request *http.Request) {
	if request.URL.Path == "/" {
		fmt.Fprintf(response, "%s version %s by %s.\n", common.AppName, common.AppVersion, common.AppAuthor)
		fmt.Fprintf(response, "\nPaths:\n")
		fmt.Fprintf(response, "- Metrics: /metrics\n")
	} else {
		http.Error(response, "404 - Page not found.\n", http.StatusNotFound)
	}
}

func handleMetricsRequest(response http.ResponseWriter, request *http.Request, gatherer prometheus.Gatherer) {
	log.WithFields(log.Fields{
		"endpoint": "metrics",
		"client":   request.RemoteAddr,
		"url":      request.URL,
	}).Trace("Request")

	// Process metrics are per request, collection metrics come from the shared registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	util.NewExporterMetric(registry, common.PrometheusNamespace, common.AppVersion)
	gatherers := prometheus.Gatherers{registry}
	if gatherer != nil {
		gatherers = append(gatherers, gatherer)
	}

	// Delegate final handling to Prometheus
	promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}).ServeHTTP(response, request)
}
