package models

// HealthResp is the body served on /health.
type HealthResp struct {
	Status   string              `json:"status"`
	Services []ServiceHealthResp `json:"services"`
} // .HealthResp

type ServiceHealthResp struct {
	Service     string `json:"service"`
	Status      string `json:"status"`
	HealthIssue string `json:"health_issue"`
} // .ServiceHealthResp

func (shr ServiceHealthResp) BuildErrorResponse(err error) ServiceHealthResp {
	shr.Status = STATUS_DOWN
	shr.HealthIssue = err.Error()
	return shr
}

func (shr ServiceHealthResp) BuildUpResponse() ServiceHealthResp {
	shr.Status = STATUS_UP
	shr.HealthIssue = HEALTH_ISSUE_NONE
	return shr
}
