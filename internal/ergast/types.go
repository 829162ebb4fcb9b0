package ergast

// Upstream values are kept as the strings the API sends; numbers included.

type Season struct {
	Season string `json:"season"`
	URL    string `json:"url,omitempty"`
}

type Location struct {
	Lat      string `json:"lat,omitempty"`
	Long     string `json:"long,omitempty"`
	Locality string `json:"locality,omitempty"`
	Country  string `json:"country,omitempty"`
}

type Circuit struct {
	CircuitID   string   `json:"circuitId"`
	URL         string   `json:"url,omitempty"`
	CircuitName string   `json:"circuitName"`
	Location    Location `json:"Location"`
}

type Race struct {
	Season   string  `json:"season"`
	Round    string  `json:"round"`
	URL      string  `json:"url,omitempty"`
	RaceName string  `json:"raceName"`
	Circuit  Circuit `json:"Circuit"`
	Date     string  `json:"date"`
	Time     string  `json:"time,omitempty"`
}

type Driver struct {
	DriverID        string `json:"driverId"`
	PermanentNumber string `json:"permanentNumber,omitempty"`
	Code            string `json:"code,omitempty"`
	URL             string `json:"url,omitempty"`
	GivenName       string `json:"givenName"`
	FamilyName      string `json:"familyName"`
	DateOfBirth     string `json:"dateOfBirth,omitempty"`
	Nationality     string `json:"nationality,omitempty"`
}

type Constructor struct {
	ConstructorID string `json:"constructorId"`
	URL           string `json:"url,omitempty"`
	Name          string `json:"name"`
	Nationality   string `json:"nationality,omitempty"`
}

type ResultTime struct {
	Millis string `json:"millis,omitempty"`
	Time   string `json:"time"`
}

type AverageSpeed struct {
	Units string `json:"units"`
	Speed string `json:"speed"`
}

type FastestLap struct {
	Rank         string        `json:"rank,omitempty"`
	Lap          string        `json:"lap"`
	Time         ResultTime    `json:"Time"`
	AverageSpeed *AverageSpeed `json:"AverageSpeed,omitempty"`
}

type RaceResult struct {
	Number       string      `json:"number"`
	Position     string      `json:"position"`
	PositionText string      `json:"positionText"`
	Points       string      `json:"points"`
	Driver       Driver      `json:"Driver"`
	Constructor  Constructor `json:"Constructor"`
	Grid         string      `json:"grid"`
	Laps         string      `json:"laps"`
	Status       string      `json:"status"`
	Time         *ResultTime `json:"Time,omitempty"`
	FastestLap   *FastestLap `json:"FastestLap,omitempty"`
}

type LapTiming struct {
	DriverID string `json:"driverId"`
	Position string `json:"position"`
	Time     string `json:"time"`
}

// LapRecord holds every driver's timing for one lap.
type LapRecord struct {
	Number  string      `json:"number"`
	Timings []LapTiming `json:"Timings"`
}

type PitStop struct {
	DriverID string `json:"driverId"`
	Lap      string `json:"lap"`
	Stop     string `json:"stop"`
	Time     string `json:"time"`
	Duration string `json:"duration"`
}

type DriverStanding struct {
	Position     string        `json:"position"`
	PositionText string        `json:"positionText,omitempty"`
	Points       string        `json:"points"`
	Wins         string        `json:"wins"`
	Driver       Driver        `json:"Driver"`
	Constructors []Constructor `json:"Constructors"`
}

type ConstructorStanding struct {
	Position     string      `json:"position"`
	PositionText string      `json:"positionText,omitempty"`
	Points       string      `json:"points"`
	Wins         string      `json:"wins"`
	Constructor  Constructor `json:"Constructor"`
}

// StandingsList is the table after one round. Exactly one of the two slices
// is populated, depending on the endpoint.
type StandingsList struct {
	Season               string                `json:"season"`
	Round                string                `json:"round"`
	DriverStandings      []DriverStanding      `json:"DriverStandings,omitempty"`
	ConstructorStandings []ConstructorStanding `json:"ConstructorStandings,omitempty"`
}

// Champions pairs both title winners of a season. The two lookups fail
// independently; a failed side is nil with its message in the matching Err.
type Champions struct {
	Season         string               `json:"season"`
	Driver         *DriverStanding      `json:"driver,omitempty"`
	Constructor    *ConstructorStanding `json:"constructor,omitempty"`
	DriverErr      string               `json:"driverError,omitempty"`
	ConstructorErr string               `json:"constructorError,omitempty"`
}
