package models

// ============================================================
// Profile Model
// ============================================================

// Profile запись библиотеки профилей. Файлы лежат в FileStorage под ID.
type Profile struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Code      string  `json:"code"`
	Company   string  `json:"company"`
	Size      string  `json:"size"`
	WidthMM   float64 `json:"width_mm"`
	HeightMM  float64 `json:"height_mm"`
	Notes     string  `json:"notes"`
	FilePath  string  `json:"-"`
	ThumbPath string  `json:"-"`
	Source    string  `json:"source"`
	DateAdded string  `json:"date_added"`
}

// Patch изменяемые поля профиля; nil оставляет значение как есть.
type Patch struct {
	Name    *string `json:"name"`
	Code    *string `json:"code"`
	Company *string `json:"company"`
	Size    *string `json:"size"`
	Notes   *string `json:"notes"`
}

func (p Patch) Apply(dst *Profile) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Code != nil {
		dst.Code = *p.Code
	}
	if p.Company != nil {
		dst.Company = *p.Company
	}
	if p.Size != nil {
		dst.Size = *p.Size
	}
	if p.Notes != nil {
		dst.Notes = *p.Notes
	}
}
