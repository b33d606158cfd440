package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/smartlight/internal/api/models"
)

func (s *Server) registerAWSSRoutes() {
	if s.options.Device == nil {
		s.logger.Debug("No device attached, skipping control routes")
		return
	}
	device := s.options.Device

	huma.Register(s.api, huma.Operation{
		OperationID:   "awss-active",
		Method:        http.MethodPost,
		Path:          "/api/awss/active",
		Summary:       "Start provisioning",
		Description:   "Queue a provisioning start, as a button click would.",
		Tags:          []string{"awss"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.AWSSActiveRequest) (*models.AcceptedResponse, error) {
		device.ActivateAWSS()
		return accepted("provisioning queued"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "awss-reset",
		Method:        http.MethodPost,
		Path:          "/api/awss/reset",
		Summary:       "Factory reset",
		Description:   "Report the reset, clear the stored access point and reboot after the grace delay.",
		Tags:          []string{"awss"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.AcceptedResponse, error) {
		device.Reset()
		return accepted("factory reset scheduled"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-indicator",
		Method:      http.MethodGet,
		Path:        "/api/indicator",
		Summary:     "Indicator status",
		Description: "Current status LED mode together with provisioning and cloud state.",
		Tags:        []string{"indicator"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.IndicatorResponse, error) {
		st := device.Indicator()
		return &models.IndicatorResponse{
			Body: models.IndicatorData{
				Mode:           st.Mode.String(),
				High:           st.High,
				PeriodMs:       st.Period.Milliseconds(),
				Generation:     st.Generation,
				AWSSRunning:    device.AWSSRunning(),
				CloudConnected: device.CloudConnected(),
				LinkkitStarted: device.LinkkitStarted(),
			},
		}, nil
	})
}

func accepted(msg string) *models.AcceptedResponse {
	return &models.AcceptedResponse{
		Status: http.StatusAccepted,
		Body: models.AcceptedData{
			Status:  "accepted",
			Message: msg,
		},
	}
}
