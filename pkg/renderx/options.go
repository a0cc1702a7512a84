package renderx

// Cookie is passed through to the capture engine verbatim; it is never
// persisted (jobs.Job has no field that could carry it).
type Cookie struct {
	Name     string `json:"name" validate:"required,headersafe"`
	Value    string `json:"value" validate:"headersafe"`
	Domain   string `json:"domain,omitempty" validate:"omitempty,headersafe"`
	Path     string `json:"path,omitempty" validate:"omitempty,headersafe"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
}

// Headers is a flat string-to-string map forwarded to the capture engine;
// every value must be free of injection sequences.
type Headers map[string]string

// Viewport is the emulated browser window size for a screenshot (§4.5).
type Viewport struct {
	Width  int `json:"width" validate:"required,gte=320,lte=3840"`
	Height int `json:"height" validate:"required,gte=240,lte=2160"`
}

// Clip restricts the screenshot to a rectangular region of the page.
type Clip struct {
	X      float64 `json:"x" validate:"gte=0"`
	Y      float64 `json:"y" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// ScrollPosition scrolls the page before capture; mutually exclusive with
// FullPage (§4.5).
type ScrollPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ScreenshotRequest is the validated body of a screenshot job (§4.5, §3).
type ScreenshotRequest struct {
	URL            string          `json:"url" validate:"required,url"`
	Viewport       *Viewport       `json:"viewport,omitempty" validate:"omitempty"`
	DeviceScale    float64         `json:"deviceScale,omitempty" validate:"omitempty,gte=1,lte=3"`
	Clip           *Clip           `json:"clip,omitempty" validate:"omitempty"`
	Format         string          `json:"format,omitempty" validate:"omitempty,oneof=png jpeg webp"`
	Quality        int             `json:"quality,omitempty" validate:"omitempty,gte=1,lte=100"`
	FullPage       bool            `json:"fullPage,omitempty"`
	ScrollPosition *ScrollPosition `json:"scrollPosition,omitempty" validate:"omitempty"`
	BlockResources []string        `json:"blockResources,omitempty" validate:"omitempty,dive,oneof=image stylesheet font script media"`
	WaitUntil      string          `json:"waitUntil,omitempty" validate:"omitempty,oneof=load domcontentloaded networkidle0 networkidle2"`
	TimeoutMs      int             `json:"timeoutMs,omitempty" validate:"omitempty,gte=1000,lte=60000"`
	Cookies        []Cookie        `json:"cookies,omitempty" validate:"omitempty,dive"`
	Headers        Headers         `json:"headers,omitempty" validate:"omitempty,dive,headersafe"`
	Async          bool            `json:"async,omitempty"`
	NoStore        bool            `json:"noStore,omitempty"`
}

// PDFRequest is a tagged union over {source_kind: "url", url} and
// {source_kind: "html", html} (§4.5).
type PDFRequest struct {
	SourceKind string  `json:"sourceKind" validate:"required,oneof=url html"`
	URL        string  `json:"url,omitempty" validate:"required_if=SourceKind url"`
	HTML       string  `json:"html,omitempty" validate:"required_if=SourceKind html"`
	Format     string  `json:"format,omitempty" validate:"omitempty,oneof=Letter Legal Tabloid Ledger A0 A1 A2 A3 A4 A5 A6"`
	Scale      float64 `json:"scale,omitempty" validate:"omitempty,gte=0.1,lte=2.0"`
	Margin     string  `json:"margin,omitempty" validate:"omitempty,dimstring"`
	Width      string  `json:"width,omitempty" validate:"omitempty,dimstring"`
	Height     string  `json:"height,omitempty" validate:"omitempty,dimstring"`
	Cookies    []Cookie `json:"cookies,omitempty" validate:"omitempty,dive"`
	Headers    Headers  `json:"headers,omitempty" validate:"omitempty,dive,headersafe"`
	Async      bool     `json:"async,omitempty"`
	NoStore    bool     `json:"noStore,omitempty"`
}
