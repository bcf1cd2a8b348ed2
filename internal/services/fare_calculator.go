package services

import (
	"math"

	"nepway/internal/models"
	"nepway/internal/utils"
)

// Tariff: a base fare, then a per-km rate that drops at 5 km and at 15 km.
const (
	BaseFare = 30.0

	shortTripKm  = 5.0
	mediumTripKm = 15.0
	shortRateKm  = 15.0
	mediumRateKm = 10.0
	longRateKm   = 5.0
)

// Distance is the great-circle distance in km between two points, rounded to
// two decimals.
func Distance(from, to models.Coordinates) float64 {
	return utils.CalculateDistance(from.Lat, from.Lng, to.Lat, to.Lng)
}

// Fare prices a trip of distanceKm. The result is monotonic non-decreasing in
// distance and rounded to the nearest whole unit.
func Fare(distanceKm float64) float64 {
	if distanceKm <= 0 {
		return BaseFare
	}

	var fare float64
	switch {
	case distanceKm <= shortTripKm:
		fare = BaseFare + shortRateKm*distanceKm
	case distanceKm <= mediumTripKm:
		fare = BaseFare + shortRateKm*shortTripKm + mediumRateKm*(distanceKm-shortTripKm)
	default:
		fare = BaseFare + shortRateKm*shortTripKm + mediumRateKm*(mediumTripKm-shortTripKm) +
			longRateKm*(distanceKm-mediumTripKm)
	}
	return math.Round(fare)
}

// EstimateFare prices the trip between two optional points. Without both
// points only the base fare applies.
func EstimateFare(from, to *models.Coordinates) *models.FareEstimate {
	if from == nil || to == nil {
		return &models.FareEstimate{DistanceKm: 0, Fare: BaseFare}
	}
	distance := Distance(*from, *to)
	return &models.FareEstimate{DistanceKm: distance, Fare: Fare(distance)}
}
