package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"alprofile/internal/extruder/models"

	"github.com/gofiber/fiber/v3/log"
)

// ============================================================
// DXF Reader
// ============================================================

var (
	ErrNotDXF    = errors.New("not a DXF document")
	ErrBinaryDXF = errors.New("binary DXF is not supported")
)

const binarySentinel = "AutoCAD Binary DXF"

// tag пара group code / value.
type tag struct {
	code  int
	value string
}

// ParseFile читает DXF с диска.
func ParseFile(path string) (*models.Drawing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open DXF: %w", err)
	}
	defer f.Close()

	return ParseDXF(f)
}

// ParseDXF разбирает ASCII DXF. Сначала строгий проход; если структура
// битая, повторяет разбор в режиме восстановления и берёт всё, что удалось.
func ParseDXF(r io.Reader) (*models.Drawing, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read DXF: %w", err)
	}
	if bytes.HasPrefix(data, []byte(binarySentinel)) {
		return nil, ErrBinaryDXF
	}

	lines := splitLines(data)

	tags, err := readTags(lines, true)
	if err != nil {
		log.Warnf("[DXF] strict read failed: %v, trying recovery", err)
		tags, _ = readTags(lines, false)
	}

	drawing, err := buildDrawing(tags)
	if err != nil {
		return nil, err
	}

	log.Debugf("[DXF] entities=%d blocks=%d", len(drawing.Entities), len(drawing.Blocks))
	return drawing, nil
}

// splitLines нормализует BOM, CRLF и невалидный UTF-8.
func splitLines(data []byte) []string {
	text := string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	text = strings.ToValidUTF8(text, "?")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func readTags(lines []string, strict bool) ([]tag, error) {
	tags := make([]tag, 0, len(lines)/2)

	i := 0
	for i < len(lines) {
		raw := strings.TrimSpace(lines[i])
		if raw == "" && restBlank(lines[i:]) {
			break
		}

		code, err := strconv.Atoi(raw)
		if err != nil {
			if strict {
				return tags, fmt.Errorf("line %d: bad group code %q", i+1, raw)
			}
			// ресинхронизация: ищем следующую строку, похожую на group code
			i++
			continue
		}

		if i+1 >= len(lines) {
			if strict {
				return tags, fmt.Errorf("line %d: group code %d without value", i+1, code)
			}
			break
		}

		value := strings.TrimSpace(lines[i+1])
		tags = append(tags, tag{code: code, value: value})
		i += 2

		if code == 0 && value == "EOF" {
			break
		}
	}

	return tags, nil
}

func restBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

// ============================================================
// Sections
// ============================================================

func buildDrawing(tags []tag) (*models.Drawing, error) {
	drawing := &models.Drawing{Blocks: make(map[string]*models.Block)}
	sawSection := false

	i := 0
	for i < len(tags) {
		t := tags[i]
		if t.code != 0 || t.value != "SECTION" {
			i++
			continue
		}
		sawSection = true
		i++
		if i >= len(tags) || tags[i].code != 2 {
			continue
		}
		name := strings.ToUpper(tags[i].value)
		i++

		end := sectionEnd(tags, i)
		switch name {
		case "ENTITIES":
			drawing.Entities = append(drawing.Entities, readEntities(tags[i:end], true)...)
		case "BLOCKS":
			for _, b := range readBlocks(tags[i:end]) {
				drawing.AddBlock(b)
			}
		}
		i = end
	}

	if !sawSection {
		return nil, ErrNotDXF
	}
	return drawing, nil
}

func sectionEnd(tags []tag, from int) int {
	for j := from; j < len(tags); j++ {
		if tags[j].code == 0 && (tags[j].value == "ENDSEC" || tags[j].value == "EOF") {
			return j
		}
	}
	return len(tags)
}

func readBlocks(tags []tag) []*models.Block {
	var blocks []*models.Block

	i := 0
	for i < len(tags) {
		if tags[i].code != 0 || tags[i].value != "BLOCK" {
			i++
			continue
		}

		block := &models.Block{}
		i++
		for i < len(tags) && tags[i].code != 0 {
			switch tags[i].code {
			case 2:
				block.Name = tags[i].value
			case 10:
				block.Base.X = parseFloat(tags[i].value)
			case 20:
				block.Base.Y = parseFloat(tags[i].value)
			}
			i++
		}

		start := i
		for i < len(tags) && !(tags[i].code == 0 && tags[i].value == "ENDBLK") {
			i++
		}
		block.Entities = readEntities(tags[start:i], false)

		if block.Name != "" {
			blocks = append(blocks, block)
		}
	}

	return blocks
}

// readEntities режет поток на группы по коду 0. POLYLINE забирает идущие
// следом VERTEX до SEQEND.
func readEntities(tags []tag, modelspaceOnly bool) []models.Entity {
	var out []models.Entity

	i := 0
	for i < len(tags) {
		if tags[i].code != 0 {
			i++
			continue
		}

		typ := strings.ToUpper(tags[i].value)
		end := i + 1
		for end < len(tags) && tags[end].code != 0 {
			end++
		}
		group := tags[i+1 : end]
		i = end

		if typ == "POLYLINE" {
			var vertices [][]tag
			for i < len(tags) && tags[i].code == 0 && strings.EqualFold(tags[i].value, "VERTEX") {
				vend := i + 1
				for vend < len(tags) && tags[vend].code != 0 {
					vend++
				}
				vertices = append(vertices, tags[i+1:vend])
				i = vend
			}
			if i < len(tags) && tags[i].code == 0 && strings.EqualFold(tags[i].value, "SEQEND") {
				i++
				for i < len(tags) && tags[i].code != 0 {
					i++
				}
			}
			if modelspaceOnly && inPaperspace(group) {
				continue
			}
			out = append(out, decodePolyline(group, vertices))
			continue
		}

		if modelspaceOnly && inPaperspace(group) {
			continue
		}
		out = append(out, decodeEntity(typ, group))
	}

	return out
}

func inPaperspace(group []tag) bool {
	for _, t := range group {
		if t.code == 67 && strings.TrimSpace(t.value) == "1" {
			return true
		}
	}
	return false
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
