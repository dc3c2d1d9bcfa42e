package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Spreadsheet column keys after header folding.
const (
	ColCode           = "CODIGO UNICO"
	ColInstitution    = "INSTITUCION"
	ColName           = "NOMBRE DEL ESTABLECIMIENTO"
	ColDepartment     = "DEPARTAMENTO"
	ColProvince       = "PROVINCIA"
	ColDistrict       = "DISTRITO"
	ColCategory       = "CATEGORIA"
	ColStatus         = "ESTADO"
	ColNorth          = "NORTE"
	ColEast           = "ESTE"
	ColUbigeo         = "UBIGEO"
	ColClassification = "CLASIFICACION"
)

// RequiredColumns must all be present for the spreadsheet to be usable.
var RequiredColumns = []string{ColName, ColDepartment, ColStatus, ColNorth, ColEast}

// StatusActive is the only IPRESS status kept.
const StatusActive = "ACTIVO"

// DefaultClassification is the keyword a facility classification must carry.
const DefaultClassification = "HOSPITAL"

// RejectReason explains why a spreadsheet row was dropped.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectInactive       RejectReason = "inactive"
	RejectMissingCoords  RejectReason = "missing_coords"
	RejectZeroCoords     RejectReason = "zero_coords"
	RejectOutOfRange     RejectReason = "out_of_range"
	RejectClassification RejectReason = "classification"
)

// RejectReasons lists every non-empty reason, in the order rules are applied.
var RejectReasons = []RejectReason{
	RejectInactive, RejectMissingCoords, RejectZeroCoords, RejectOutOfRange, RejectClassification,
}

// Header maps folded column names to their position in a row.
type Header map[string]int

// NewHeader indexes a header row. The first occurrence of a name wins.
func NewHeader(cells []string) Header {
	h := make(Header, len(cells))
	for i, c := range cells {
		key := headerKey(c)
		if key == "" {
			continue
		}
		if _, ok := h[key]; !ok {
			h[key] = i
		}
	}
	// Some exports shorten the facility name column.
	if _, ok := h[ColName]; !ok {
		for key, i := range h {
			if strings.Contains(key, "NOMBRE") && strings.Contains(key, "ESTABLECIMIENTO") {
				h[ColName] = i
				break
			}
		}
	}
	return h
}

// Has reports whether the column is present.
func (h Header) Has(col string) bool {
	_, ok := h[col]
	return ok
}

// Missing returns the required columns the header lacks.
func (h Header) Missing() []string {
	var out []string
	for _, c := range RequiredColumns {
		if !h.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (h Header) cell(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseHospitalRow builds a Hospital from a spreadsheet row. Coordinates stay
// raw until FilterHospital validates them.
func ParseHospitalRow(h Header, row []string) Hospital {
	hosp := Hospital{
		Institution:    h.cell(row, ColInstitution),
		Name:           h.cell(row, ColName),
		Department:     h.cell(row, ColDepartment),
		Province:       h.cell(row, ColProvince),
		District:       h.cell(row, ColDistrict),
		Category:       h.cell(row, ColCategory),
		Status:         h.cell(row, ColStatus),
		Ubigeo:         h.cell(row, ColUbigeo),
		Classification: h.cell(row, ColClassification),
		North:          h.cell(row, ColNorth),
		East:           h.cell(row, ColEast),
	}
	hosp.ID = facilityID(h.cell(row, ColCode), hosp)
	return hosp
}

// FilterRules configures FilterHospital.
type FilterRules struct {
	// Classification is matched case-insensitively against the facility
	// classification when the row has one. Empty disables the check.
	Classification string
}

// FilterHospital applies the retention rules in order and, on success,
// returns the hospital with its WGS-84 point resolved.
func FilterHospital(h Hospital, rules FilterRules) (Hospital, RejectReason) {
	if !strings.EqualFold(strings.TrimSpace(h.Status), StatusActive) {
		return h, RejectInactive
	}

	east, okE := parseCoord(h.East)
	north, okN := parseCoord(h.North)
	if !okE || !okN {
		return h, RejectMissingCoords
	}
	if east == 0 || north == 0 {
		return h, RejectZeroCoords
	}

	p, src := ToWGS84(east, north)
	if !InPeru(p) {
		return h, RejectOutOfRange
	}

	if kw := NormalizeName(rules.Classification); kw != "" && h.Classification != "" {
		if !strings.Contains(NormalizeName(h.Classification), kw) {
			return h, RejectClassification
		}
	}

	h.Point = p
	h.CoordSource = src
	return h, RejectNone
}

// parseCoord parses a coordinate cell, accepting a decimal comma.
func parseCoord(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return 0, false
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// facilityID returns the registry code when the sheet has one, otherwise a
// deterministic hash of the identifying fields.
func facilityID(code string, h Hospital) string {
	if code != "" {
		return code
	}
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		NormalizeName(h.Institution), NormalizeName(h.Name), NormalizeName(h.Department),
		h.Ubigeo, h.North, h.East)
	sum := sha256.Sum256([]byte(input))
	return "ipress-" + hex.EncodeToString(sum[:8])
}
