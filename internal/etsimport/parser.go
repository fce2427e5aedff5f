package etsimport

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// MaxFileSize is the largest export accepted (50MB).
const MaxFileSize = 50 * 1024 * 1024

// Format identifies the kind of export that was parsed.
type Format string

// Supported export formats.
const (
	FormatKNXProj Format = "knxproj"
	FormatXML     Format = "xml"
	FormatCSV     Format = "csv"
)

// rangeSeparator joins nested group range names in GroupAddress.Location.
const rangeSeparator = " > "

// GroupAddress is one group address read from an export.
type GroupAddress struct {
	Address knx.GroupAddress `json:"-"`
	Name    string           `json:"name,omitempty"`

	// DPT is empty when the export has no type or the type has no decoder.
	DPT knx.DPT `json:"dpt,omitempty"`

	// RawDPT is the type as written by ETS, e.g. "DPST-9-1".
	RawDPT string `json:"raw_dpt,omitempty"`

	// Location is the group range path, e.g. "Lighting > Ground floor".
	Location string `json:"location,omitempty"`
}

// MarshalJSON renders the address in 3-level form.
func (g GroupAddress) MarshalJSON() ([]byte, error) {
	type plain GroupAddress
	return json.Marshal(struct {
		Address string `json:"address"`
		plain
	}{g.Address.String(), plain(g)})
}

// Warning describes a non-fatal problem with one entry.
type Warning struct {
	Code    string `json:"code"`
	Address string `json:"address"`
	Message string `json:"message"`
}

// Result holds everything read from one export.
type Result struct {
	Format    Format         `json:"format"`
	Addresses []GroupAddress `json:"addresses"`
	Warnings  []Warning      `json:"warnings,omitempty"`

	seen map[knx.GroupAddress]bool
}

// Typed returns the addresses that have a supported datapoint type.
func (r *Result) Typed() []GroupAddress {
	out := make([]GroupAddress, 0, len(r.Addresses))
	for _, ga := range r.Addresses {
		if ga.DPT != "" {
			out = append(out, ga)
		}
	}
	return out
}

// ParseFile reads and parses the export at path. The format is detected
// from the content, falling back to the file extension.
func ParseFile(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Base(path))
}

// Parse parses an export held in memory. filename is only used to pick
// the format when the content is ambiguous.
func Parse(data []byte, filename string) (*Result, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	res := &Result{seen: make(map[knx.GroupAddress]bool)}
	var err error
	switch {
	case isZipFile(data):
		res.Format = FormatKNXProj
		err = parseKNXProj(data, res)
	case strings.EqualFold(filepath.Ext(filename), ".csv"):
		res.Format = FormatCSV
		err = parseCSV(data, res)
	case isXMLFile(data):
		res.Format = FormatXML
		err = parseXML(data, res)
	default:
		res.Format = FormatCSV
		err = parseCSV(data, res)
	}
	if err != nil {
		return nil, err
	}

	if len(res.Addresses) == 0 {
		return nil, ErrNoGroupAddresses
	}
	sort.Slice(res.Addresses, func(i, j int) bool {
		return res.Addresses[i].Address < res.Addresses[j].Address
	})
	return res, nil
}

// parseKNXProj finds the project XML (P-XXXX/0.xml) inside a .knxproj
// archive. Protected projects carry an encrypted P-XXXX.zip instead.
func parseKNXProj(data []byte, res *Result) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}

	protected := false
	for _, f := range reader.File {
		name := strings.ToLower(filepath.Base(f.Name))
		switch {
		case name == "0.xml":
			content, err := readZipFile(f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", f.Name, err)
			}
			return parseXML(content, res)
		case strings.HasPrefix(name, "p-") && strings.HasSuffix(name, ".zip"):
			protected = true
		}
	}
	if protected {
		return ErrProtectedProject
	}
	return fmt.Errorf("%w: no project XML in archive", ErrInvalidFile)
}

// parseXML walks any ETS XML document and collects GroupAddress elements,
// tracking the enclosing GroupRange names. This covers the project 0.xml
// as well as the group address export.
func parseXML(data []byte, res *Result) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var ranges []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "GroupRange":
				ranges = append(ranges, attr(el, "Name"))
			case "GroupAddress":
				// 0.xml uses DatapointType, the XML export uses DPTs.
				dpt := attr(el, "DatapointType")
				if dpt == "" {
					dpt = attr(el, "DPTs")
				}
				res.add(attr(el, "Address"), attr(el, "Name"), dpt, strings.Join(ranges, rangeSeparator))
			}
		case xml.EndElement:
			if el.Name.Local == "GroupRange" && len(ranges) > 0 {
				ranges = ranges[:len(ranges)-1]
			}
		}
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// CSV header aliases, lower case. ETS writes English or German headers
// depending on the UI language.
var (
	csvAddressCols = []string{"address", "group address", "groupaddress", "ga", "adresse"}
	csvNameCols    = []string{"group name", "name", "sub", "bezeichnung"}
	csvDPTCols     = []string{"datapointtype", "datapoint type", "dpt", "dpts", "datenpunkttyp"}
	csvMainCols    = []string{"main"}
	csvMiddleCols  = []string{"middle"}
)

// parseCSV reads an ETS CSV export. Rows for main and middle groups
// ("1/-/-", "1/2/-") carry no address; their names become the Location
// of the rows that follow.
func parseCSV(data []byte, res *Result) error {
	data, err := decodeText(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}

	addrCol := findColumn(index, csvAddressCols...)
	if addrCol < 0 {
		return fmt.Errorf("%w: no address column", ErrInvalidFile)
	}
	nameCol := findColumn(index, csvNameCols...)
	dptCol := findColumn(index, csvDPTCols...)
	mainCol := findColumn(index, csvMainCols...)
	middleCol := findColumn(index, csvMiddleCols...)

	var mainName, middleName string
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}

		addr := field(fields, addrCol)
		if addr == "" {
			continue
		}

		if strings.Contains(addr, "-") {
			label := firstNonEmpty(field(fields, nameCol), field(fields, middleCol), field(fields, mainCol))
			if strings.Count(addr, "-") >= 2 { //nolint:mnd // "1/-/-"
				mainName, middleName = label, ""
			} else {
				middleName = label
			}
			continue
		}

		location := mainName
		if middleName != "" {
			location += rangeSeparator + middleName
		}
		res.add(addr, field(fields, nameCol), field(fields, dptCol), location)
	}
}

// decodeText strips a UTF-8 BOM and converts UTF-16 exports (which carry
// a BOM) to UTF-8.
func decodeText(data []byte) ([]byte, error) {
	dec := xunicode.BOMOverride(encoding.Nop.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	return out, err
}

// detectDelimiter picks the separator used most often in the header line.
func detectDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func findColumn(index map[string]int, names ...string) int {
	for _, name := range names {
		if idx, ok := index[name]; ok {
			return idx
		}
	}
	return -1
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r *Result) add(addr, name, rawDPT, location string) {
	ga, err := knx.ParseGroupAddress(addr)
	if err != nil {
		r.warn(WarnInvalidGA, addr, err.Error())
		return
	}
	if r.seen[ga] {
		r.warn(WarnDuplicateGA, ga.String(), "group address listed more than once")
		return
	}
	r.seen[ga] = true

	entry := GroupAddress{Address: ga, Name: name, RawDPT: rawDPT, Location: location}
	switch norm := normaliseDPT(rawDPT); {
	case norm == "":
		r.warn(WarnMissingDPT, ga.String(), "no datapoint type")
	default:
		dpt, err := knx.ParseDPT(norm)
		if err != nil {
			r.warn(WarnUnsupportedDPT, ga.String(), fmt.Sprintf("datapoint type %s is not supported", norm))
			break
		}
		entry.DPT = dpt
	}
	r.Addresses = append(r.Addresses, entry)
}

func (r *Result) warn(code, addr, msg string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Address: addr, Message: msg})
}

// Precompiled regexes for DPT normalisation.
var (
	reDPTComplete = regexp.MustCompile(`^\d+\.\d{3}$`)
	reDPST        = regexp.MustCompile(`^DPST-(\d+)-(\d+)$`)
	reDPT         = regexp.MustCompile(`^DPT-?(\d+)$`)
	reDPTPartial  = regexp.MustCompile(`^(\d+)\.(\d{1,3})$`)
)

// normaliseDPT converts the ETS notation to "major.minor".
// DPST-9-1 -> 9.001, DPT-1 -> 1.001, 9.1 -> 9.001. When ETS lists several
// types separated by spaces or commas the first one wins.
func normaliseDPT(dpt string) string {
	fields := strings.FieldsFunc(dpt, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if len(fields) == 0 {
		return ""
	}
	dpt = fields[0]

	if reDPTComplete.MatchString(dpt) {
		return dpt
	}
	if m := reDPST.FindStringSubmatch(dpt); m != nil {
		return joinDPT(m[1], m[2])
	}
	if m := reDPT.FindStringSubmatch(dpt); m != nil {
		return m[1] + ".001"
	}
	if m := reDPTPartial.FindStringSubmatch(dpt); m != nil {
		return joinDPT(m[1], m[2])
	}
	return dpt
}

func joinDPT(major, minor string) string {
	mj, _ := strconv.Atoi(major)
	mn, _ := strconv.Atoi(minor)
	return fmt.Sprintf("%d.%03d", mj, mn)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func isZipFile(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K'
}

func isXMLFile(data []byte) bool {
	trimmed := bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	trimmed = bytes.TrimLeftFunc(trimmed, unicode.IsSpace)
	return bytes.HasPrefix(trimmed, []byte("<"))
}
