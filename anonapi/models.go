package anonapi

import "github.com/paulmach/orb/geojson"

type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// DefaultPosition is downtown Vancouver, the only metro area the backend serves.
var DefaultPosition = Position{Lat: 49.279844999999995, Lon: -123.10200666666667}

type VehicleModel struct {
	Autonomy      int     `json:"autonomy"`
	AutonomyUnit  string  `json:"autonomyUnit"`
	EnergyType    string  `json:"energyType"`
	IconsURL      string  `json:"iconsUrl"`
	ID            int     `json:"id"`
	Manufacturer  *string `json:"manufacturer"`
	Name          string  `json:"name"`
	PricingInfo   *string `json:"pricingInfo"`
	Seats         int     `json:"seats"`
	TokenIconsURL string  `json:"tokenIconsUrl"`
	VehicleType   string  `json:"vehicleType"`
}

// Option is undocumented; the backend has only ever returned an empty list.
type Option map[string]any

// GeoLayer is the envelope shared by parking areas and home zones.
// Its ID has the form "pois-<serviceId>" or "zones-<serviceId>".
type GeoLayer struct {
	ID                string `json:"id"`
	ServiceID         string `json:"serviceId"`
	ServiceType       string `json:"serviceType"`
	ServiceVisibility string `json:"serviceVisibility"`
}

type ParkingArea struct {
	GeoLayer
	Content *geojson.FeatureCollection `json:"content"`
}

type Homezone struct {
	GeoLayer
	Zone *geojson.FeatureCollection `json:"zone"`
}

type Service struct {
	BookingValidity    int      `json:"bookingValidity"`
	CityID             string   `json:"cityId"`
	ID                 string   `json:"id"`
	MaxConcurrentTrips int      `json:"maxConcurrentTrips"`
	Name               string   `json:"name"`
	POIs               []string `json:"pois"`
	Status             string   `json:"status"`
	Type               string   `json:"type"`
	VehiclesInService  int      `json:"vehiclesInService"`
	Visibility         string   `json:"visibility"`
	ZoneFillColor      *string  `json:"zoneFillColor"`
	ZoneOutlineColor   *string  `json:"zoneOutlineColor"`
	Zones              []string `json:"zones"`
}

type City struct {
	ContactPhoneNumber       *string   `json:"contactPhoneNumber"`
	ContactURL               *string   `json:"contactUrl"`
	CurrencyCode             string    `json:"currency_code"`
	DistanceUnit             string    `json:"distanceUnit"`
	FaqURL                   *string   `json:"faqUrl"`
	HomezoneIDs              []string  `json:"homezoneIds"`
	ID                       string    `json:"id"`
	ImagesURL                string    `json:"imagesUrl"`
	LayerIDs                 []string  `json:"layerIds"`
	Locale                   string    `json:"locale"`
	Name                     string    `json:"name"`
	Position                 Position  `json:"position"`
	Radius                   float64   `json:"radius"`
	Services                 []Service `json:"services"`
	// Not RFC 3339 ("2023-05-01T00:00:00.000+0000"), kept as sent.
	TermsOfUseUpdateDatetime *string   `json:"termsOfUseUpdateDatetime"`
	TermsOfUseURL            string    `json:"termsOfUseUrl"`
	TimeZone                 string    `json:"timeZone"`
	TokenIconsURL            *string   `json:"tokenIconsUrl"`
	ZoneID                   *string   `json:"zoneId"`
	ZoomLevel                int       `json:"zoomLevel"`
}

type PricingInfo struct {
	PricingID string `json:"pricingId"`
	Type      string `json:"type"`
}

type Description struct {
	CityID        string      `json:"cityId"`
	IconsURL      string      `json:"iconsUrl"`
	ID            string      `json:"id"`
	Model         string      `json:"model"`
	ModelID       int         `json:"modelId"`
	Name          string      `json:"name"`
	OptionIDs     []any       `json:"optionIds"`
	Plate         string      `json:"plate"`
	PricingInfo   PricingInfo `json:"pricingInfo"`
	ServiceID     string      `json:"serviceId"`
	TokenIconsURL string      `json:"tokenIconsUrl"`
}

type Address struct {
	Country string `json:"country"`
}

type Location struct {
	Address  Address  `json:"address"`
	Position Position `json:"position"`
}

type Status struct {
	EnergyLevel  float64 `json:"energyLevel"`
	EnergyLevel2 float64 `json:"energyLevel2"`
	IsCharging   bool    `json:"isCharging"`
}

type AvailableVehicle struct {
	Description Description `json:"description"`
	Location    Location    `json:"location"`
	Status      Status      `json:"status"`

	// Distance in meters from the last reference position. Nil until projected.
	Distance *int `json:"distance,omitempty"`
}

// DataNames are the names of the Bundle collections, in the order returned by Bundle.Collections.
var DataNames = [6]string{"models", "options", "parking", "homezones", "cities", "vehicles"}

// Bundle is the result of one FetchAll call.
type Bundle struct {
	Models    []VehicleModel     `json:"models"`
	Options   []Option           `json:"options"`
	Parking   []ParkingArea      `json:"parking"`
	Homezones []Homezone         `json:"homezones"`
	Cities    []City             `json:"cities"`
	Vehicles  []AvailableVehicle `json:"vehicles"`
}

// Collections returns the six collections index-aligned with DataNames.
func (b *Bundle) Collections() [6]any {
	return [6]any{b.Models, b.Options, b.Parking, b.Homezones, b.Cities, b.Vehicles}
}
