package types

// WorldGeneration is one backup generation of a saved world.
type WorldGeneration struct {
	Gen       string `json:"gen"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// World is a saved world with its backup generations, newest first.
type World struct {
	WorldName   string            `json:"worldName"`
	Generations []WorldGeneration `json:"generations"`
}

// MCVersion is a game server version offered by the control panel.
type MCVersion struct {
	Name        string `json:"name"`
	IsStable    bool   `json:"isStable"`
	Channel     string `json:"channel"`
	ReleaseDate string `json:"releaseDate"`
}

// SystemInfo describes the machine running the game server.
type SystemInfo struct {
	PremisesVersion string  `json:"premisesVersion"`
	HostOS          string  `json:"hostOs"`
	IPAddr          *string `json:"ipAddr"`
}

// WorldInfo describes the world currently loaded by the running server.
type WorldInfo struct {
	Version   string `json:"version"`
	WorldName string `json:"worldName"`
	Seed      string `json:"seed"`
}

// SnapshotConfiguration selects a quick-undo slot.
type SnapshotConfiguration struct {
	Slot int `json:"slot"`
}

// CreateWorldDownloadLinkReq asks for a download URL of a backup generation.
type CreateWorldDownloadLinkReq struct {
	ID string `json:"id"`
}

// CreateWorldUploadLinkReq asks for an upload URL for a world archive.
type CreateWorldUploadLinkReq struct {
	WorldName string `json:"worldName"`
	MimeType  string `json:"mimeType"`
}

// DeleteWorldInput names the world to delete.
type DeleteWorldInput struct {
	WorldName string `json:"worldName"`
}

// DelegatedURL is a pre-signed URL handed out by the control panel.
type DelegatedURL struct {
	URL string `json:"url"`
}
