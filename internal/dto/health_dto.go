package dto

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type InfoResponse struct {
	App         string `json:"app"`
	Env         string `json:"env"`
	QueueURL    string `json:"queue_url"`
	StoreDriver string `json:"store_driver"`
}

type VersionResponse struct {
	Version string `json:"version"`
}
