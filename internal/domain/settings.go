package domain

// Settings is the snapshot the capture core runs with. It is copied by value
// into the orchestrator and replaced wholesale on update.
type Settings struct {
	Directory       string `yaml:"directory" json:"directory"`
	SubfolderPerApp bool   `yaml:"subfolder_per_app" json:"subfolderPerApp"`
	ReplaceShortcut bool   `yaml:"replace_shortcut" json:"replaceShortcut"`
	// Hand finished captures to the platform's own screenshot gallery
	SubmitToPlatform bool `yaml:"submit_to_platform" json:"submitToPlatform"`
	SaveRightImage   bool `yaml:"save_right_image" json:"saveRightImage"`
	Notifications    bool `yaml:"notifications" json:"notifications"`
	Thumbnail        bool `yaml:"thumbnail" json:"thumbnail"`
	Audio            bool `yaml:"audio" json:"audio"`
	ExitWithRuntime  bool `yaml:"exit_with_runtime" json:"exitWithRuntime"`

	// Unattended interval captures
	CaptureTimer       bool `yaml:"capture_timer" json:"captureTimer"`
	TimerSeconds       int  `yaml:"timer_seconds" json:"timerSeconds"`
	TimerDateSubfolder bool `yaml:"timer_date_subfolder" json:"timerDateSubfolder"`

	// Local delayed captures (hotkey/action); remote requests may ask for more
	DelayCapture bool `yaml:"delay_capture" json:"delayCapture"`
	DelaySeconds int  `yaml:"delay_seconds" json:"delaySeconds"`

	SuperSampling      bool    `yaml:"supersampling" json:"supersampling"`
	SuperSamplingScale float64 `yaml:"supersampling_scale" json:"supersamplingScale"`

	// Remote socket server
	EnableServer       bool `yaml:"enable_server" json:"enableServer"`
	ServerPort         int  `yaml:"server_port" json:"serverPort"`
	AddTag             bool `yaml:"add_tag" json:"addTag"`
	TransmitAll        bool `yaml:"transmit_all" json:"transmitAll"`
	ResponseResolution int  `yaml:"response_resolution" json:"responseResolution"`

	// Viewfinder overlay: distance in meters, opacity and reticle size in percent
	Viewfinder      bool    `yaml:"viewfinder" json:"viewfinder"`
	OverlayDistance float64 `yaml:"overlay_distance" json:"overlayDistance"`
	OverlayOpacity  float64 `yaml:"overlay_opacity" json:"overlayOpacity"`
	ReticleSize     float64 `yaml:"reticle_size" json:"reticleSize"`
}

// ResponseResolutions maps Settings.ResponseResolution to a max edge in
// pixels; -1 keeps the original size.
var ResponseResolutions = []int{128, 256, 512, 1024, -1}

// ResponseEdge returns the max edge for remote image payloads, -1 for original size.
func (s Settings) ResponseEdge() int {
	if s.ResponseResolution < 0 || s.ResponseResolution >= len(ResponseResolutions) {
		return ResponseResolutions[1]
	}
	return ResponseResolutions[s.ResponseResolution]
}

