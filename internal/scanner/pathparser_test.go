package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFolderName(t *testing.T) {
	tests := []struct {
		name         string
		folder       string
		wantStart    string
		wantEnd      string
		wantLocation string
	}{
		{
			name:         "full date range with location",
			folder:       "20231001-20231007Japan",
			wantStart:    "20231001",
			wantEnd:      "20231007",
			wantLocation: "Japan",
		},
		{
			name:         "short range reuses year and month",
			folder:       "20231001-07_USA",
			wantStart:    "20231001",
			wantEnd:      "20231007",
			wantLocation: "USA",
		},
		{
			name:         "single date with location",
			folder:       "20231001_Tokyo",
			wantStart:    "20231001",
			wantLocation: "Tokyo",
		},
		{
			name:         "single date separated by space",
			folder:       "20240315 Qinghai Lake",
			wantStart:    "20240315",
			wantLocation: "Qinghai Lake",
		},
		{
			name:      "bare date without location",
			folder:    "20231001",
			wantStart: "20231001",
		},
		{
			name:         "location only",
			folder:       "YellowMountain",
			wantLocation: "YellowMountain",
		},
		{
			name:         "seven digits is not a date",
			folder:       "2023100_spot",
			wantLocation: "2023100_spot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, location := ParseFolderName(tt.folder)
			assert.Equal(t, tt.wantStart, start, "start date")
			assert.Equal(t, tt.wantEnd, end, "end date")
			assert.Equal(t, tt.wantLocation, location, "location")
		})
	}
}

func TestPathParserPositional(t *testing.T) {
	parser, err := NewPathParser("/photos", "")
	require.NoError(t, err)

	tests := []struct {
		name          string
		path          string
		wantDate      string
		wantLocation  string
		wantStructure string
	}{
		{
			name:          "single dated folder",
			path:          "/photos/20231001-20231007Japan/IMG_0001.jpg",
			wantDate:      "20231001",
			wantLocation:  "Japan",
			wantStructure: "20231001-20231007Japan",
		},
		{
			name:          "nested folders join locations",
			path:          "/photos/20231001-07_USA/NYC/photo.jpg",
			wantDate:      "20231001",
			wantLocation:  "USA_NYC",
			wantStructure: "20231001-07_USA/NYC",
		},
		{
			name:          "deeper date wins",
			path:          "/photos/2023_Trips/20231105_Shanghai/DSC0001.jpg",
			wantDate:      "20231105",
			wantLocation:  "2023_Trips_Shanghai",
			wantStructure: "2023_Trips/20231105_Shanghai",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := parser.Parse(tt.path)
			assert.Equal(t, tt.wantDate, meta.CapturedDate)
			assert.Equal(t, tt.wantLocation, meta.LocationTag)
			assert.Equal(t, tt.wantStructure, meta.SourceStructure)
		})
	}
}

func TestPathParserFallbacks(t *testing.T) {
	parser, err := NewPathParser("/photos", "")
	require.NoError(t, err)

	meta := parser.Parse("/photos/IMG_0001.jpg")
	assert.Equal(t, time.Now().Format("20060102"), meta.CapturedDate,
		"file without dated folders falls back to the current date")
	assert.Equal(t, DefaultLocation, meta.LocationTag)
	assert.Equal(t, ".", meta.SourceStructure)
}

func TestPathParserExplicitPattern(t *testing.T) {
	parser, err := NewPathParser("/photos", `(?P<date>\d{8})/(?P<location>.+)`)
	require.NoError(t, err)

	meta := parser.Parse("/photos/20240102/Beijing/IMG_0002.jpg")
	assert.Equal(t, "20240102", meta.CapturedDate)
	// The greedy location capture swallows the file name; it must be
	// stripped back out.
	assert.Equal(t, "Beijing", meta.LocationTag)
}

func TestPathParserExplicitPatternFallsBack(t *testing.T) {
	parser, err := NewPathParser("/photos", `^unmatchable/(?P<date>\d{8})$`)
	require.NoError(t, err)

	meta := parser.Parse("/photos/20231001_Tokyo/IMG_0003.jpg")
	assert.Equal(t, "20231001", meta.CapturedDate,
		"positional parsing applies when the pattern does not match")
	assert.Equal(t, "Tokyo", meta.LocationTag)
}

func TestPathParserRejectsInvalidPattern(t *testing.T) {
	_, err := NewPathParser("/photos", `(?P<date>[`)
	require.Error(t, err)
}
