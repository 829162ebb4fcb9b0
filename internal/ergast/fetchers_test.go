package ergast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

const verstappen2021 = `{"MRData":{"total":"1","StandingsTable":{"season":"2021","StandingsLists":[
 {"season":"2021","round":"22","DriverStandings":[{"position":"1","positionText":"1","points":"395.5","wins":"10",
  "Driver":{"driverId":"max_verstappen","code":"VER","givenName":"Max","familyName":"Verstappen","nationality":"Dutch"},
  "Constructors":[{"constructorId":"red_bull","name":"Red Bull","nationality":"Austrian"}]}]}]}}}`

const mercedes2021 = `{"MRData":{"total":"1","StandingsTable":{"season":"2021","StandingsLists":[
 {"season":"2021","round":"22","ConstructorStandings":[{"position":"1","points":"613.5","wins":"9",
  "Constructor":{"constructorId":"mercedes","name":"Mercedes","nationality":"German"}}]}]}}}`

func TestDriverChampion_CachedForADay(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2021/driverStandings/1.json", verstappen2021)
	svc, mr := newTestService(t, srv, Options{})
	ctx := context.Background()

	got, err := svc.DriverChampion(ctx, "2021")
	if err != nil {
		t.Fatalf("DriverChampion: %v", err)
	}
	if got.Driver.FamilyName != "Verstappen" {
		t.Fatalf("familyName=%q want Verstappen", got.Driver.FamilyName)
	}

	again, err := svc.DriverChampion(ctx, "2021")
	if err != nil || again.Driver.FamilyName != got.Driver.FamilyName || again.Points != got.Points {
		t.Fatalf("repeat=%+v err=%v", again, err)
	}
	if n := api.count("/2021/driverStandings/1.json"); n != 1 {
		t.Fatalf("upstream calls=%d want 1", n)
	}
	if ttl := mr.TTL("driver-champion-2021"); ttl != 24*time.Hour {
		t.Fatalf("ttl=%v want 24h", ttl)
	}
}

func TestDriverChampion_MissingStandingIsShapeErrorAndNotCached(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2021/driverStandings/1.json",
		`{"MRData":{"StandingsTable":{"season":"2021","StandingsLists":[{"season":"2021","round":"22","DriverStandings":[]}]}}}`)
	svc, mr := newTestService(t, srv, Options{})

	_, err := svc.DriverChampion(context.Background(), "2021")
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v want *ShapeError", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "driver champion") || !strings.Contains(msg, "season=2021") ||
		!strings.Contains(msg, "DriverStandings[0]") {
		t.Fatalf("error not descriptive: %s", msg)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("cache written on shape error: %v", keys)
	}
}

func TestFetch_NonJSONBodyIsShapeError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2021.json", `<html>maintenance</html>`)
	svc, _ := newTestService(t, srv, Options{})

	_, err := svc.Races(context.Background(), "2021")
	var se *ShapeError
	if !errors.As(err, &se) || se.Err == nil {
		t.Fatalf("err=%v want decode ShapeError", err)
	}
}

func TestInvalidParams_NoUpstreamCall(t *testing.T) {
	api, srv := newFakeAPI(t)
	svc, _ := newTestService(t, srv, Options{})
	ctx := context.Background()

	checks := []error{}
	_, err := svc.Races(ctx, "20x1")
	checks = append(checks, err)
	_, err = svc.RaceResults(ctx, "2021", "../1")
	checks = append(checks, err)
	_, err = svc.DriverLapTimes(ctx, "2021", "5", "Max Verstappen")
	checks = append(checks, err)
	_, err = svc.Champions(ctx, "")
	checks = append(checks, err)

	for i, err := range checks {
		if !errors.Is(err, ErrInvalidParam) {
			t.Fatalf("check %d: err=%v want ErrInvalidParam", i, err)
		}
	}
	if n := api.total(); n != 0 {
		t.Fatalf("upstream calls=%d want 0", n)
	}
}

func TestRacesResultsPitStops_Decode(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/seasons.json?limit=100", `{"MRData":{"SeasonTable":{"Seasons":[{"season":"2020"},{"season":"2021"}]}}}`)
	api.on("/2021.json", `{"MRData":{"RaceTable":{"season":"2021","Races":[
	  {"season":"2021","round":"1","raceName":"Bahrain Grand Prix","date":"2021-03-28",
	   "Circuit":{"circuitId":"bahrain","circuitName":"Bahrain International Circuit","Location":{"locality":"Sakhir","country":"Bahrain"}}}]}}}`)
	api.on("/2021/1/results.json", `{"MRData":{"RaceTable":{"Races":[{"season":"2021","round":"1","raceName":"Bahrain Grand Prix",
	  "Results":[{"number":"44","position":"1","positionText":"1","points":"25","grid":"2","laps":"56","status":"Finished",
	  "Driver":{"driverId":"hamilton","givenName":"Lewis","familyName":"Hamilton"},
	  "Constructor":{"constructorId":"mercedes","name":"Mercedes"},"Time":{"millis":"5523897","time":"1:32:03.897"}}]}]}}}`)
	api.on("/2021/1/pitstops.json", `{"MRData":{"RaceTable":{"Races":[{"season":"2021","round":"1",
	  "PitStops":[{"driverId":"hamilton","lap":"13","stop":"1","time":"18:24:11","duration":"23.112"}]}]}}}`)
	svc, _ := newTestService(t, srv, Options{})
	ctx := context.Background()

	seasons, err := svc.Seasons(ctx)
	if err != nil || len(seasons) != 2 || seasons[1].Season != "2021" {
		t.Fatalf("seasons=%v err=%v", seasons, err)
	}
	races, err := svc.Races(ctx, "2021")
	if err != nil || len(races) != 1 || races[0].Circuit.Location.Country != "Bahrain" {
		t.Fatalf("races=%+v err=%v", races, err)
	}
	res, err := svc.RaceResults(ctx, "2021", "1")
	if err != nil || len(res) != 1 || res[0].Time == nil || res[0].Time.Time != "1:32:03.897" {
		t.Fatalf("results=%+v err=%v", res, err)
	}
	stops, err := svc.PitStops(ctx, "2021", "1")
	if err != nil || len(stops) != 1 || stops[0].Duration != "23.112" {
		t.Fatalf("pitstops=%+v err=%v", stops, err)
	}
}

func TestEmptyResultsAreValid(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2024/20/results.json", `{"MRData":{"RaceTable":{"Races":[{"season":"2024","round":"20","Results":[]}]}}}`)
	api.on("/2024/21/results.json", `{"MRData":{"RaceTable":{"Races":[]}}}`)
	svc, _ := newTestService(t, srv, Options{})

	res, err := svc.RaceResults(context.Background(), "2024", "20")
	if err != nil || res == nil || len(res) != 0 {
		t.Fatalf("present but empty: res=%v err=%v", res, err)
	}
	_, err = svc.RaceResults(context.Background(), "2024", "21")
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("race not run yet: err=%v want *ShapeError", err)
	}
}

func TestLiveSeason_UsesShortTTL(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2024/driverStandings.json",
		`{"MRData":{"StandingsTable":{"season":"2024","StandingsLists":[{"season":"2024","round":"11","DriverStandings":[]}]}}}`)
	svc, mr := newTestService(t, srv, Options{})

	if _, err := svc.DriverStandings(context.Background(), "2024"); err != nil {
		t.Fatalf("DriverStandings: %v", err)
	}
	if ttl := mr.TTL("driver-standings-2024"); ttl != 10*time.Minute {
		t.Fatalf("ttl=%v want 10m for the running season", ttl)
	}
}

func TestChampions_FailIndependently(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2021/driverStandings/1.json", verstappen2021)
	api.fail("/2021/constructorStandings/1.json", 500)
	svc, _ := newTestService(t, srv, Options{})

	c, err := svc.Champions(context.Background(), "2021")
	if err != nil {
		t.Fatalf("Champions: %v", err)
	}
	if c.Driver == nil || c.Driver.Driver.FamilyName != "Verstappen" {
		t.Fatalf("driver side=%+v", c.Driver)
	}
	if c.Constructor != nil || c.ConstructorErr == "" {
		t.Fatalf("constructor side should carry an error: %+v", c)
	}

	api.fail("/2021/constructorStandings/1.json", 0)
	api.on("/2021/constructorStandings/1.json", mercedes2021)
	c, _ = svc.Champions(context.Background(), "2021")
	if c.Constructor == nil || c.Constructor.Constructor.Name != "Mercedes" {
		t.Fatalf("constructor after recovery=%+v", c)
	}
}

func TestChampions_BothSidesFailWaitsForBoth(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.fail("/2021/driverStandings/1.json", 500)
	api.fail("/2021/constructorStandings/1.json", 500)
	svc, _ := newTestService(t, srv, Options{})

	c, err := svc.Champions(context.Background(), "2021")
	if err != nil {
		t.Fatalf("Champions: %v", err)
	}
	if c.DriverErr == "" || c.ConstructorErr == "" || c.Driver != nil || c.Constructor != nil {
		t.Fatalf("champions=%+v want both sides failed", c)
	}

	if _, err := svc.Champions(context.Background(), "21"); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("err=%v want ErrInvalidParam", err)
	}
}

func TestClearKey_TriggersOneRefetch(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2021/driverStandings/1.json", verstappen2021)
	svc, mr := newTestService(t, srv, Options{})
	ctx := context.Background()

	_, _ = svc.DriverChampion(ctx, "2021")
	svc.store.Clear(ctx, "driver-champion-2021")
	_, _ = svc.DriverChampion(ctx, "2021")
	_, _ = svc.DriverChampion(ctx, "2021")
	if n := api.count("/2021/driverStandings/1.json"); n != 2 {
		t.Fatalf("after clear calls=%d want 2", n)
	}

	mr.FastForward(24*time.Hour + time.Second)
	_, _ = svc.DriverChampion(ctx, "2021")
	if n := api.count("/2021/driverStandings/1.json"); n != 3 {
		t.Fatalf("after expiry calls=%d want 3", n)
	}
}

func TestDriverLapTimes(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2021/5/drivers/max_verstappen/laps.json?limit=100", `{"MRData":{"RaceTable":{"Races":[{"season":"2021","round":"5",
	  "Laps":[{"number":"1","Timings":[{"driverId":"max_verstappen","position":"1","time":"1:20.100"}]},
	          {"number":"2","Timings":[{"driverId":"max_verstappen","position":"1","time":"1:18.900"}]}]}]}}}`)
	svc, _ := newTestService(t, srv, Options{})

	laps, err := svc.DriverLapTimes(context.Background(), "2021", "5", "max_verstappen")
	if err != nil || len(laps) != 2 || laps[1].Timings[0].Time != "1:18.900" {
		t.Fatalf("laps=%+v err=%v", laps, err)
	}
}
