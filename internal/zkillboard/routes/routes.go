package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"go-killtracker/internal/zkillboard/dto"
	"go-killtracker/internal/zkillboard/services"
	"go-killtracker/pkg/evegateway"
)

// Routes handles HTTP endpoints for the zKillboard ingest module
type Routes struct {
	ingest *services.IngestService
	esi    *evegateway.Client
}

// NewRoutes creates a new Routes instance
func NewRoutes(ingest *services.IngestService, esi *evegateway.Client) *Routes {
	return &Routes{ingest: ingest, esi: esi}
}

// RegisterRoutes registers all zKillboard routes under the base path
func (r *Routes) RegisterRoutes(api huma.API, basePath string) {
	huma.Register(api, huma.Operation{
		OperationID: "getZKillboardStatus",
		Method:      http.MethodGet,
		Path:        basePath + "/status",
		Summary:     "Get RedisQ ingest status",
		Description: "Returns the current status, counters and configuration of the RedisQ ingest service",
		Tags:        []string{"Module Status", "ZKillboard"},
	}, r.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "runZKillboardPoll",
		Method:      http.MethodPost,
		Path:        basePath + "/poll",
		Summary:     "Run one ingest cycle",
		Description: "Polls RedisQ until the run limits are hit and reports the outcome. Yields without polling when another instance holds the ingest lock.",
		Tags:        []string{"ZKillboard"},
	}, r.RunIngest)
}

// GetStatusInput represents query parameters for the status endpoint
type GetStatusInput struct{}

// GetStatus returns the current ingest status. The game server state is
// included so a quiet feed can be told apart from a broken one: no kills
// arrive during downtime no matter how healthy the ingest loop is.
func (r *Routes) GetStatus(ctx context.Context, input *GetStatusInput) (*dto.ServiceStatusOutput, error) {
	body := *r.ingest.Status()
	body.GameServer = r.gameServerStatus(ctx)

	// The error budget is only known once a response carried the headers.
	if budget := r.esi.ErrorLimitStatus(); budget.Remain > 0 {
		body.ESIErrorBudget = &dto.ESIErrorBudget{
			Remain:        budget.Remain,
			WindowSeconds: budget.Window,
			ResetAt:       budget.Reset,
		}
	}

	return &dto.ServiceStatusOutput{Body: body}, nil
}

func (r *Routes) gameServerStatus(ctx context.Context) *dto.GameServerStatus {
	state, err := r.esi.Status.GetServerStatus(ctx)
	if err != nil {
		return &dto.GameServerStatus{Online: false, Error: err.Error()}
	}
	return &dto.GameServerStatus{
		Online:        true,
		Players:       state.Players,
		ServerVersion: state.ServerVersion,
	}
}

// RunIngestInput represents parameters for a manual ingest run
type RunIngestInput struct{}

// RunIngest triggers one ingest run and reports its result
func (r *Routes) RunIngest(ctx context.Context, input *RunIngestInput) (*dto.RunIngestOutput, error) {
	result, err := r.ingest.RunOnce(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("ingest run failed: " + err.Error())
	}

	response := dto.RunIngestResponse{
		Started:   result.Started(),
		Received:  result.Received,
		Submitted: result.Submitted,
		Malformed: result.Malformed,
		Duration:  result.Duration.Round(time.Millisecond).String(),
		Reason:    result.Reason,
	}
	if !result.Started() {
		response.Message = "another instance holds the ingest lock"
	}

	return &dto.RunIngestOutput{Body: response}, nil
}
