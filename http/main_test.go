package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.hon.one/niobium/common"
	"dev.hon.one/niobium/util"
)

func TestRootPage(t *testing.T) {
	server := httptest.NewServer(newServeMux(nil))
	defer server.Close()

	response, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), common.AppName+" version "+common.AppVersion)

	missing, err := http.Get(server.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestMetricsPage(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := util.NewCounter(registry, "niobium", "collection", "interfaces_total", "Interfaces.")
	counter.Add(7)
	server := httptest.NewServer(newServeMux(registry))
	defer server.Close()

	response, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "niobium_collection_interfaces_total 7")
	assert.Contains(t, string(body), `niobium_exporter_info{version="`+common.AppVersion+`"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestStartServerShutdown(t *testing.T) {
	saved := common.GlobalConfig
	t.Cleanup(func() { common.GlobalConfig = saved })
	common.GlobalConfig.HTTPEndpoint = "127.0.0.1:0"

	var waitGroup sync.WaitGroup
	shutdown := util.NewShutdownChannelDistributor()
	StartServer(&waitGroup, shutdown, prometheus.NewRegistry())
	shutdown.Shutdown()

	done := make(chan struct{})
	go func() {
		waitGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("HTTP server did not stop")
	}
}
