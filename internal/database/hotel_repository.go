package database

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/stayhaven/booking-backend/internal/models"
)

// HotelRepository handles database operations for the hotels table
type HotelRepository struct {
	db DB
}

// NewHotelRepository creates a new HotelRepository
func NewHotelRepository(db DB) *HotelRepository {
	return &HotelRepository{db: db}
}

// Create creates a new hotel
func (r *HotelRepository) Create(hotel *models.Hotel) error {
	query := `
		INSERT INTO hotels (
			id, name, city, owner_id, price_per_night, total_rooms,
			amenities, average_rating
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING created_at, updated_at
	`

	if hotel.ID == uuid.Nil {
		hotel.ID = uuid.New()
	}

	return r.db.QueryRow(
		query,
		hotel.ID, hotel.Name, hotel.City, hotel.OwnerID,
		hotel.PricePerNight, hotel.TotalRooms,
		hotel.Amenities, hotel.AverageRating,
	).Scan(&hotel.CreatedAt, &hotel.UpdatedAt)
}

// GetByID retrieves a hotel by ID
func (r *HotelRepository) GetByID(hotelID uuid.UUID) (*models.Hotel, error) {
	query := `
		SELECT id, name, city, owner_id, price_per_night, total_rooms,
			   amenities, average_rating, created_at, updated_at
		FROM hotels
		WHERE id = $1
	`

	hotel := &models.Hotel{}
	var city sql.NullString

	err := r.db.QueryRow(query, hotelID).Scan(
		&hotel.ID, &hotel.Name, &city, &hotel.OwnerID,
		&hotel.PricePerNight, &hotel.TotalRooms,
		&hotel.Amenities, &hotel.AverageRating,
		&hotel.CreatedAt, &hotel.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrHotelNotFound
	}
	if err != nil {
		return nil, err
	}

	if city.Valid {
		hotel.City = &city.String
	}

	return hotel, nil
}

// List retrieves hotels, optionally filtered by city
func (r *HotelRepository) List(city *string, limit, offset int) ([]models.Hotel, error) {
	query := `
		SELECT id, name, city, owner_id, price_per_night, total_rooms,
			   amenities, average_rating, created_at, updated_at
		FROM hotels
		WHERE ($1::text IS NULL OR city = $1)
		ORDER BY name
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, city, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hotels := []models.Hotel{}
	for rows.Next() {
		var hotel models.Hotel
		var hotelCity sql.NullString

		err := rows.Scan(
			&hotel.ID, &hotel.Name, &hotelCity, &hotel.OwnerID,
			&hotel.PricePerNight, &hotel.TotalRooms,
			&hotel.Amenities, &hotel.AverageRating,
			&hotel.CreatedAt, &hotel.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if hotelCity.Valid {
			hotel.City = &hotelCity.String
		}

		hotels = append(hotels, hotel)
	}

	return hotels, rows.Err()
}

// UpdateAverageRating writes the recomputed rating back to the hotel row
func (r *HotelRepository) UpdateAverageRating(hotelID uuid.UUID, average float64) error {
	query := `
		UPDATE hotels
		SET average_rating = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, hotelID, average)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return models.ErrHotelNotFound
	}

	return nil
}

// ListIDs returns every hotel id. The nightly rating repair walks this.
func (r *HotelRepository) ListIDs() ([]uuid.UUID, error) {
	rows, err := r.db.Query(`SELECT id FROM hotels ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
