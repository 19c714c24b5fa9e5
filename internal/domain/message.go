package domain

// ScreenshotMessage is the inbound remote request.
type ScreenshotMessage struct {
	Nonce string `json:"nonce"`
	Delay int    `json:"delay,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// ScreenshotResponse is sent back to remote clients. Error responses carry
// Message/Error and no image fields.
type ScreenshotResponse struct {
	Nonce      string `json:"nonce"`
	Image      string `json:"image,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FilePath   string `json:"filePath,omitempty"`
	FilePathVR string `json:"filePathVR,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

func NewImageResponse(nonce, image string, width, height int, filePath, filePathVR string) ScreenshotResponse {
	return ScreenshotResponse{
		Nonce:      nonce,
		Image:      image,
		Width:      width,
		Height:     height,
		FilePath:   filePath,
		FilePathVR: filePathVR,
	}
}

func NewErrorResponse(nonce, message, errText string) ScreenshotResponse {
	return ScreenshotResponse{Nonce: nonce, Message: message, Error: errText}
}
