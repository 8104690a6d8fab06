package models

// MediaTypeVideo is the only media type the channel produces.
const MediaTypeVideo = "video"

// ExtraTypeTrailer marks entries that are playable as trailers/intros.
const ExtraTypeTrailer = "Trailer"

// ProviderTmdb is the provider-id key for catalog movie ids.
const ProviderTmdb = "Tmdb"

// ChannelEntry is a uniform listing entry: a category folder, a movie folder or a video.
type ChannelEntry struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	IsFolder     bool              `json:"isFolder"`
	MediaType    string            `json:"mediaType"`
	ExtraType    string            `json:"extraType,omitempty"`
	TrailerTypes []TrailerType     `json:"trailerTypes,omitempty"`
	ProviderIDs  map[string]string `json:"providerIds,omitempty"`
}

// ChannelQuery selects a folder and an optional page window.
type ChannelQuery struct {
	FolderID   string
	StartIndex *int
	Limit      *int
}

// ChannelItemResult is the listing returned to the browsing layer.
type ChannelItemResult struct {
	Items      []ChannelEntry `json:"items"`
	TotalCount int            `json:"totalCount"`
}

// StreamDescriptor is a concrete playable stream produced by a site resolver.
type StreamDescriptor struct {
	URL       string `json:"url"`
	Bitrate   int64  `json:"bitrate"`
	Container string `json:"container"`
}

// MediaSource is the playback descriptor handed to the player.
type MediaSource struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Path            string `json:"path"`
	TranscodingHint string `json:"transcodingHint,omitempty"`
	Protocol        string `json:"protocol"`
	IsRemote        bool   `json:"isRemote"`
	Bitrate         int64  `json:"bitrate,omitempty"`
	Container       string `json:"container,omitempty"`
}
