package domain

import (
	"sort"
	"strings"
)

// AllDepartments selects every department in FilterByDepartment.
const AllDepartments = "Todos"

// Summarize computes the headline metrics for a set of hospitals.
// Districts counts distinct (department, province, district) names.
func Summarize(hospitals []Hospital) Summary {
	depts := make(map[string]struct{})
	districts := make(map[string]struct{})
	for _, h := range hospitals {
		if d := NormalizeName(h.Department); d != "" {
			depts[d] = struct{}{}
		}
		if key := districtKey(h); key != "" {
			districts[key] = struct{}{}
		}
	}
	return Summary{
		TotalHospitals: len(hospitals),
		Departments:    len(depts),
		Districts:      len(districts),
		GeneratedAt:    Now().UTC(),
	}
}

// districtKey uses the registry columns only, so the count does not depend on
// whether the district layer has been joined.
func districtKey(h Hospital) string {
	name := NormalizeName(h.District)
	if name == "" {
		return ""
	}
	return NormalizeName(h.Department) + "|" + NormalizeName(h.Province) + "|" + name
}

// CountByDepartment counts hospitals per department, largest first and
// alphabetical on ties. The department label is the normalized name.
func CountByDepartment(hospitals []Hospital) []DepartmentCount {
	counts := make(map[string]int)
	for _, h := range hospitals {
		d := NormalizeName(h.Department)
		if d == "" {
			continue
		}
		counts[d]++
	}
	out := make([]DepartmentCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DepartmentCount{Department: d, Hospitals: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hospitals != out[j].Hospitals {
			return out[i].Hospitals > out[j].Hospitals
		}
		return out[i].Department < out[j].Department
	})
	return out
}

// TopDepartments returns at most n entries of counts. n <= 0 returns all.
func TopDepartments(counts []DepartmentCount, n int) []DepartmentCount {
	if n <= 0 || n >= len(counts) {
		return counts
	}
	return counts[:n]
}

// DepartmentsList returns the sorted unique normalized department names.
func DepartmentsList(hospitals []Hospital) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, h := range hospitals {
		d := NormalizeName(h.Department)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// FilterByDepartment keeps the hospitals of one department. An empty name or
// AllDepartments returns the input unchanged.
func FilterByDepartment(hospitals []Hospital, department string) []Hospital {
	if department == "" || strings.EqualFold(strings.TrimSpace(department), AllDepartments) {
		return hospitals
	}
	want := NormalizeName(department)
	out := make([]Hospital, 0)
	for _, h := range hospitals {
		if NormalizeName(h.Department) == want {
			out = append(out, h)
		}
	}
	return out
}

// HasDepartment reports whether any hospital belongs to department.
func HasDepartment(hospitals []Hospital, department string) bool {
	want := NormalizeName(department)
	for _, h := range hospitals {
		if NormalizeName(h.Department) == want {
			return true
		}
	}
	return false
}
