package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"irrigation-planner/internal/agronomy"
)

// Provider fetches forecasts and resolves places to coordinates.
type Provider interface {
	Forecast(ctx context.Context, lat, lon float64) ([]agronomy.DailyForecast, error)
	Geocode(ctx context.Context, query string) (lat, lon float64, err error)
}

// Days is the number of daily forecasts a Provider returns.
const Days = 7

const (
	defaultOpenWeatherURL = "https://api.openweathermap.org"
	defaultGeocodingURL   = "https://geocoding-api.open-meteo.com"
)

// forecastResponse mirrors the parts of OpenWeather's 5 day / 3 hour forecast we use.
type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Pressure float64 `json:"pressure"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Clouds struct {
			All float64 `json:"all"`
		} `json:"clouds"`
		Pop  float64            `json:"pop"`
		Rain map[string]float64 `json:"rain"`
	} `json:"list"`
	City struct {
		Timezone int `json:"timezone"`
	} `json:"city"`
}

// Client talks to OpenWeather for forecasts and Open-Meteo for geocoding.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	geocodingURL string
	now          func() time.Time
}

// NewClient creates a weather client. Empty URLs select the public endpoints.
func NewClient(apiKey, baseURL, geocodingURL string) *Client {
	if baseURL == "" {
		baseURL = defaultOpenWeatherURL
	}
	if geocodingURL == "" {
		geocodingURL = defaultGeocodingURL
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		apiKey:       apiKey,
		baseURL:      baseURL,
		geocodingURL: geocodingURL,
		now:          time.Now,
	}
}

// Forecast returns Days daily forecasts starting today in the location's
// timezone. Days beyond the provider's range are padded with empty samples,
// which the models fill with defaults.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]agronomy.DailyForecast, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)

	var resp forecastResponse
	if err := c.getJSON(ctx, c.baseURL+"/data/2.5/forecast?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}
	return groupDaily(resp, c.now()), nil
}

// groupDaily buckets 3-hour slots by local calendar day.
func groupDaily(resp forecastResponse, now time.Time) []agronomy.DailyForecast {
	loc := time.FixedZone("local", resp.City.Timezone)
	today := now.In(loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	type bucket struct {
		temp, humidity, wind, pressure, cloud, rain float64
		tmin, tmax                                  float64
		n                                           int
		hourly                                      []agronomy.HourlySample
	}
	buckets := map[int]*bucket{}

	for _, item := range resp.List {
		ts := time.Unix(item.Dt, 0).In(loc)
		idx := int(ts.Sub(start).Hours() / 24)
		if ts.Before(start) || idx >= Days {
			continue
		}
		b, ok := buckets[idx]
		if !ok {
			b = &bucket{tmin: math.Inf(1), tmax: math.Inf(-1)}
			buckets[idx] = b
		}
		b.temp += item.Main.Temp
		b.humidity += item.Main.Humidity
		b.wind += item.Wind.Speed
		b.pressure += item.Main.Pressure
		b.cloud += item.Clouds.All
		b.rain += item.Rain["3h"]
		b.tmin = math.Min(b.tmin, item.Main.TempMin)
		b.tmax = math.Max(b.tmax, item.Main.TempMax)
		b.n++
		b.hourly = append(b.hourly, agronomy.HourlySample{
			Time:       ts,
			TempC:      item.Main.Temp,
			WindSpeed:  item.Wind.Speed,
			CloudCover: item.Clouds.All,
			PrecipProb: item.Pop,
		})
	}

	out := make([]agronomy.DailyForecast, Days)
	for i := range out {
		out[i].Date = start.AddDate(0, 0, i)
		b, ok := buckets[i]
		if !ok {
			continue
		}
		n := float64(b.n)
		cloud := b.cloud / n
		sort.Slice(b.hourly, func(x, y int) bool { return b.hourly[x].Time.Before(b.hourly[y].Time) })
		out[i].Weather = agronomy.WeatherSample{
			TempC:           agronomy.Float(b.temp / n),
			TempMinC:        agronomy.Float(b.tmin),
			TempMaxC:        agronomy.Float(b.tmax),
			Humidity:        agronomy.Float(b.humidity / n),
			WindSpeed:       agronomy.Float(b.wind / n),
			PressureKPa:     agronomy.Float(b.pressure / n / 10),
			CloudCover:      agronomy.Float(cloud),
			PrecipitationMM: agronomy.Float(b.rain),
		}
		out[i].Hourly = b.hourly
	}
	return out
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// ErrLocationNotFound is returned when geocoding yields no match.
var ErrLocationNotFound = fmt.Errorf("location not found")

// Geocode resolves a place name or postal code to coordinates.
func (c *Client) Geocode(ctx context.Context, query string) (float64, float64, error) {
	q := url.Values{}
	q.Set("name", query)
	q.Set("count", "1")
	q.Set("format", "json")

	var resp geocodeResponse
	if err := c.getJSON(ctx, c.geocodingURL+"/v1/search?"+q.Encode(), &resp); err != nil {
		return 0, 0, fmt.Errorf("failed to geocode %q: %w", query, err)
	}
	if len(resp.Results) == 0 {
		return 0, 0, fmt.Errorf("%q: %w", query, ErrLocationNotFound)
	}
	return resp.Results[0].Latitude, resp.Results[0].Longitude, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather api error: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
