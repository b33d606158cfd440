// Package models holds the control API's request and response bodies.
package models

// HealthData is the health check body.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// VersionData mirrors version.Info.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-01T00:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS/architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// AWSSActiveRequest is the body of the provisioning trigger.
type AWSSActiveRequest struct {
	Body *struct {
		Start bool `json:"start,omitempty" doc:"Set by the CLI when invoked with the start argument"`
	} `required:"false"`
}

// AcceptedData acknowledges a queued action.
type AcceptedData struct {
	Status  string `json:"status" example:"accepted" doc:"Request status"`
	Message string `json:"message" example:"provisioning queued" doc:"What was queued"`
}

type AcceptedResponse struct {
	Status int
	Body   AcceptedData
}

// IndicatorData is the status LED snapshot.
type IndicatorData struct {
	Mode           string `json:"mode" example:"ok" enum:"steady,ok,fail" doc:"Blink mode"`
	High           bool   `json:"high" doc:"Current output level"`
	PeriodMs       int64  `json:"period_ms" example:"800" doc:"Toggle period in milliseconds"`
	Generation     uint64 `json:"generation" doc:"Blink chain generation"`
	AWSSRunning    bool   `json:"awss_running" doc:"Provisioning has been started since boot"`
	CloudConnected bool   `json:"cloud_connected" doc:"Cloud session is up"`
	LinkkitStarted bool   `json:"linkkit_started" doc:"Cloud application has been started"`
}

type IndicatorResponse struct {
	Body IndicatorData
}
