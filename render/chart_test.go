package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/gewnthar/coviddash/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountryChartRendersPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CountryChart(&buf, testSeries(28), DefaultChartOptions()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())
}

func TestCountryChartCustomSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CountryChart(&buf, testSeries(5), ChartOptions{Width: 640, Height: 360, DPI: 100}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 360, img.Bounds().Dy())
}

func TestCountryChartSingleDay(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CountryChart(&buf, testSeries(1), DefaultChartOptions()))
	_, err := png.Decode(&buf)
	assert.NoError(t, err)
}

func TestCountryChartFlatZeroSeries(t *testing.T) {
	s := models.CountrySeries{Country: "Holy See"}
	for i := 0; i < 4; i++ {
		s.Records = append(s.Records, models.DailyRecord{Date: time.Date(2020, 2, 1+i, 0, 0, 0, 0, time.UTC)})
	}

	var buf bytes.Buffer
	require.NoError(t, CountryChart(&buf, s, DefaultChartOptions()))
	_, err := png.Decode(&buf)
	assert.NoError(t, err)
}

func TestCountryChartEmptySeries(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, CountryChart(&buf, models.CountrySeries{Country: "Nowhere"}, DefaultChartOptions()))
}

func TestAxisCountFormatter(t *testing.T) {
	assert.Equal(t, "12,346", axisCountFormatter(12345.6))
	assert.Equal(t, "", axisCountFormatter("label"))
}

func TestChartTitle(t *testing.T) {
	assert.Equal(t, "COVID-19 stats for Spain", ChartTitle("Spain"))
}
