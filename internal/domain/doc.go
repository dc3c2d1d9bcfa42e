// Package domain models the MINSA IPRESS health-facility registry and the INEI/IGN
// boundary layers it is analysed against.
//
// # Data Sources
//
// Facility records come from the MINSA "Registro Nacional de Instituciones
// Prestadoras de Servicios de Salud" (IPRESS) open-data spreadsheet, published at
// https://datosabiertos.gob.pe/dataset/minsa-ipress. District boundaries come from
// the 2023 district shapefile (EPSG:4326) and populated centers (centros poblados,
// CCPP) from the IGN 1:100 000 shapefile.
//
// # IPRESS Conventions
//
// Column names:
//
//	Headers are matched after trimming and case folding, so "Departamento",
//	" DEPARTAMENTO " and "departamento" select the same column. Accents are kept
//	in the header text ("Institución", "Clasificación") but also matched without
//	them.
//
// Status:
//
//	Only rows whose "Estado" is "ACTIVO" describe operating facilities. Everything
//	else (CERRADO, INACTIVO, blank) is dropped.
//
// Coordinates:
//
//	"NORTE" and "ESTE" hold the facility position. Most rows carry decimal degrees
//	(NORTE = latitude, ESTE = longitude) despite the column names; older rows carry
//	UTM zone 18 south metres (EPSG:32718). A pair is treated as degrees when
//	|ESTE| <= 180 and |NORTE| <= 90, otherwise it is inverse-projected from UTM 18S.
//	Blank, non-numeric and (0, 0) pairs are placeholders for "not surveyed".
//	Converted points outside the Peru envelope (lon -82..-68, lat -19..1) are
//	rejected.
//
// Classification:
//
//	"Clasificación" distinguishes hospitals from health posts and clinics
//	("HOSPITALES O CLINICAS DE ATENCION GENERAL", "PUESTOS DE SALUD", ...). When a
//	keyword is configured the row is kept only if its classification contains it.
//
// # Names
//
// District and department names are compared through [NormalizeName]: upper case,
// single spaces, no diacritics. "Ñ" folds to "N" so "BREÑA" matches "BRENA".
//
// # IDs
//
// A facility keeps its "Código Único" when the registry provides one. Otherwise the
// ID is a deterministic SHA-256 prefix of institution|name|department|UBIGEO|NORTE|ESTE.
// See [facilityID].
package domain
