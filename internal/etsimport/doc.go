// Package etsimport reads group address tables exported from ETS, the
// KNX engineering tool, and turns them into datapoint assignments.
//
// # Supported Formats
//
//   - .knxproj: native ETS project (ZIP archive, group addresses in 0.xml)
//   - .xml: ETS group address XML export
//   - .csv: ETS group address CSV export (comma, semicolon or tab separated)
//
// # Usage
//
//	result, err := etsimport.ParseFile("house.knxproj")
//	if err != nil {
//	    return err
//	}
//	for _, ga := range result.Addresses {
//	    fmt.Println(ga.Address, ga.DPT, ga.Name)
//	}
//
// Addresses whose datapoint type is missing or has no decoder are kept
// with an empty DPT and reported in Result.Warnings.
//
// Password protected projects are not supported; export the group
// addresses as XML or CSV from ETS instead.
package etsimport
