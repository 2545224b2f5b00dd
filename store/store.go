// Package store keeps the latest aggregated bundle, the reference position and
// the error status of the last update. Collections live in an in-memory buntdb
// with a spatial index over vehicle positions.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/buntdb"

	"github.com/denysvitali/carshare-anon/anonapi"
	"github.com/denysvitali/carshare-anon/proximity"
)

var log = logrus.StandardLogger()

// NearestCount is the size of the list returned by NearestVehicles.
const NearestCount = 10

const (
	bundlePrefix   = "bundle:"
	vehiclePrefix  = "vehicle:"
	positionPrefix = "pos:"
	positionIndex  = "vehicle_positions"
)

// Fetcher produces a fresh bundle for a reference position.
type Fetcher interface {
	FetchAll(pos anonapi.Position) (*anonapi.Bundle, error)
}

// Store is safe for concurrent use. Updates are serialized.
type Store struct {
	fetcher Fetcher
	db      *buntdb.DB

	updateMu sync.Mutex

	mu          sync.RWMutex
	position    anonapi.Position
	status      ErrorStatus
	subscribers []func()
}

// New opens an empty in-memory store. The reference position starts at pos.
func New(f Fetcher, pos anonapi.Position) (*Store, error) {
	if f == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.CreateSpatialIndex(positionIndex, positionPrefix+"*", buntdb.IndexRect); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating spatial index: %w", err)
	}

	return &Store{
		fetcher:  f,
		db:       db,
		position: pos,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Subscribe registers fn to be called after every change to the store.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify() {
	s.mu.RLock()
	subscribers := slices.Clone(s.subscribers)
	s.mu.RUnlock()
	for _, fn := range subscribers {
		fn()
	}
}

func (s *Store) Position() anonapi.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

func (s *Store) ErrorStatus() ErrorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) setPosition(pos anonapi.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
}

func (s *Store) setStatus(status ErrorStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Update records pos as the reference position, fetches a new bundle and
// replaces every stored collection with it. On failure the previous
// collections are kept and the error status is set.
func (s *Store) Update(pos anonapi.Position) error {
	err := s.update(pos)
	s.notify()
	return err
}

func (s *Store) update(pos anonapi.Position) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.setPosition(pos)

	bundle, err := s.fetcher.FetchAll(pos)
	if err == nil {
		proximity.AnnotateAll(bundle.Vehicles, pos)
		proximity.SortByDistance(bundle.Vehicles)
		err = s.replace(bundle)
	}
	if err != nil {
		log.Warnf("update failed: %v", err)
		s.setStatus(ErrorStatus{HasError: true, Err: err})
		return err
	}

	log.Infof("stored %d vehicles", len(bundle.Vehicles))
	s.setStatus(ErrorStatus{})
	return nil
}

// SetPosition moves the reference position and re-sorts the stored vehicles
// around it without fetching.
func (s *Store) SetPosition(pos anonapi.Position) error {
	if err := s.setPositionAndSort(pos); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) setPositionAndSort(pos anonapi.Position) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.setPosition(pos)

	err := s.db.Update(func(tx *buntdb.Tx) error {
		vehicles, err := loadVehicles(tx)
		if err != nil {
			return err
		}
		proximity.AnnotateAll(vehicles, pos)
		proximity.SortByDistance(vehicles)
		return setVehicles(tx, vehicles)
	})
	if err != nil {
		return fmt.Errorf("storing vehicles: %w", err)
	}
	return nil
}

func (s *Store) replace(bundle *anonapi.Bundle) error {
	collections := bundle.Collections()
	return s.db.Update(func(tx *buntdb.Tx) error {
		if err := tx.DeleteAll(); err != nil {
			return fmt.Errorf("clearing store: %w", err)
		}
		// vehicles are kept per key for the spatial index
		for i, name := range anonapi.DataNames[:len(anonapi.DataNames)-1] {
			data, err := json.Marshal(collections[i])
			if err != nil {
				return fmt.Errorf("marshaling %s: %w", name, err)
			}
			if _, _, err := tx.Set(bundlePrefix+name, string(data), nil); err != nil {
				return fmt.Errorf("saving %s: %w", name, err)
			}
		}
		return setVehicles(tx, bundle.Vehicles)
	})
}

func vehicleKey(i int) string {
	return fmt.Sprintf("%s%06d", vehiclePrefix, i)
}

func positionKey(i int) string {
	return fmt.Sprintf("%s%06d", positionPrefix, i)
}

func point(pos anonapi.Position) string {
	return "[" + strconv.FormatFloat(pos.Lon, 'f', -1, 64) + " " + strconv.FormatFloat(pos.Lat, 'f', -1, 64) + "]"
}

// setVehicles stores vehicles in order, overwriting any previous list.
func setVehicles(tx *buntdb.Tx, vehicles []anonapi.AvailableVehicle) error {
	var stale []string
	err := tx.AscendKeys(vehiclePrefix+"*", func(key, _ string) bool {
		stale = append(stale, key)
		return true
	})
	if err != nil {
		return err
	}
	for _, key := range stale {
		if _, err := tx.Delete(key); err != nil {
			return err
		}
		if _, err := tx.Delete(positionPrefix + strings.TrimPrefix(key, vehiclePrefix)); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
	}

	for i, v := range vehicles {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling vehicle %s: %w", v.Description.ID, err)
		}
		if _, _, err := tx.Set(vehicleKey(i), string(data), nil); err != nil {
			return err
		}
		if _, _, err := tx.Set(positionKey(i), point(v.Location.Position), nil); err != nil {
			return err
		}
	}
	return nil
}

func load[T any](tx *buntdb.Tx, name string) ([]T, error) {
	var out []T
	val, err := tx.Get(bundlePrefix + name)
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return out, nil
}

func loadVehicles(tx *buntdb.Tx) ([]anonapi.AvailableVehicle, error) {
	var (
		vehicles  []anonapi.AvailableVehicle
		decodeErr error
	)
	err := tx.AscendKeys(vehiclePrefix+"*", func(key, value string) bool {
		var v anonapi.AvailableVehicle
		if decodeErr = json.Unmarshal([]byte(value), &v); decodeErr != nil {
			decodeErr = fmt.Errorf("decoding %s: %w", key, decodeErr)
			return false
		}
		vehicles = append(vehicles, v)
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return nil, fmt.Errorf("loading vehicles: %w", err)
	}
	return vehicles, nil
}

// view runs one collection loader in its own read transaction.
func view[T any](s *Store, fn func(tx *buntdb.Tx) ([]T, error)) ([]T, error) {
	var out []T
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

func loader[T any](name string) func(tx *buntdb.Tx) ([]T, error) {
	return func(tx *buntdb.Tx) ([]T, error) { return load[T](tx, name) }
}

func (s *Store) Models() ([]anonapi.VehicleModel, error) {
	return view(s, loader[anonapi.VehicleModel]("models"))
}

func (s *Store) Options() ([]anonapi.Option, error) {
	return view(s, loader[anonapi.Option]("options"))
}

func (s *Store) Parking() ([]anonapi.ParkingArea, error) {
	return view(s, loader[anonapi.ParkingArea]("parking"))
}

func (s *Store) Homezones() ([]anonapi.Homezone, error) {
	return view(s, loader[anonapi.Homezone]("homezones"))
}

func (s *Store) Cities() ([]anonapi.City, error) {
	return view(s, loader[anonapi.City]("cities"))
}

// Vehicles returns the stored vehicles, nearest first.
func (s *Store) Vehicles() ([]anonapi.AvailableVehicle, error) {
	return view(s, loadVehicles)
}

// Nearest returns up to n vehicles closest to the reference position.
func (s *Store) Nearest(n int) ([]anonapi.AvailableVehicle, error) {
	vehicles, err := s.Vehicles()
	if err != nil {
		return nil, err
	}
	return proximity.Nearest(vehicles, n), nil
}

func (s *Store) NearestVehicles() ([]anonapi.AvailableVehicle, error) {
	return s.Nearest(NearestCount)
}

// Within returns the vehicles at most radiusMeters from the reference
// position, nearest first.
func (s *Store) Within(radiusMeters float64) ([]anonapi.AvailableVehicle, error) {
	if radiusMeters < 0 {
		return nil, fmt.Errorf("radius must not be negative")
	}
	ref := s.Position()
	// Distances are rounded to the meter, so the box is padded by one.
	box := proximity.BoundingBox(ref, radiusMeters+1)
	bounds := point(box.Min) + "," + point(box.Max)

	var vehicles []anonapi.AvailableVehicle
	err := s.db.View(func(tx *buntdb.Tx) error {
		var keys []string
		err := tx.Intersects(positionIndex, bounds, func(key, _ string) bool {
			keys = append(keys, vehiclePrefix+strings.TrimPrefix(key, positionPrefix))
			return true
		})
		if err != nil {
			return err
		}
		slices.Sort(keys)

		for _, key := range keys {
			val, err := tx.Get(key)
			if err != nil {
				return fmt.Errorf("getting %s: %w", key, err)
			}
			var v anonapi.AvailableVehicle
			if err := json.Unmarshal([]byte(val), &v); err != nil {
				return fmt.Errorf("decoding %s: %w", key, err)
			}
			pos := v.Location.Position
			if float64(proximity.DistanceMeters(ref.Lat, ref.Lon, pos.Lat, pos.Lon)) <= radiusMeters {
				vehicles = append(vehicles, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("querying vehicles: %w", err)
	}
	return vehicles, nil
}

// InHomezone reports whether pos lies inside any stored home zone.
func (s *Store) InHomezone(pos anonapi.Position) (bool, error) {
	zones, err := s.Homezones()
	if err != nil {
		return false, err
	}
	return proximity.InHomezone(zones, pos), nil
}

// Snapshot returns everything the presentation layer renders. All
// collections come from the same update.
func (s *Store) Snapshot() (*Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		if snap.Models, err = load[anonapi.VehicleModel](tx, "models"); err != nil {
			return err
		}
		if snap.Options, err = load[anonapi.Option](tx, "options"); err != nil {
			return err
		}
		if snap.Parking, err = load[anonapi.ParkingArea](tx, "parking"); err != nil {
			return err
		}
		if snap.Homezones, err = load[anonapi.Homezone](tx, "homezones"); err != nil {
			return err
		}
		if snap.Cities, err = load[anonapi.City](tx, "cities"); err != nil {
			return err
		}
		snap.Vehicles, err = loadVehicles(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	snap.Position = s.Position()
	snap.ErrorStatus = s.ErrorStatus()
	return &snap, nil
}
