package handler

import (
	"time"

	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/service"
)

// classDTO is the JSON projection of a class with its live occupancy.
type classDTO struct {
	ID            uint64           `json:"id"`
	Title         string           `json:"title"`
	Location      string           `json:"location"`
	StartsAt      time.Time        `json:"starts_at"`
	EndsAt        time.Time        `json:"ends_at"`
	IsCancelled   bool             `json:"is_cancelled"`
	Capacity      int              `json:"capacity"`
	ReservedCount int              `json:"reserved_count"`
	WaitlistCount int              `json:"waitlist_count"`
	Available     int              `json:"available"`
	UserStatus    model.UserStatus `json:"user_status,omitempty"`
	ReservationID uint64           `json:"reservation_id,omitempty"`
}

type participantDTO struct {
	ReservationID uint64    `json:"reservation_id"`
	ClientID      uint64    `json:"client_id"`
	ReservedAt    time.Time `json:"reserved_at"`
}

type classDetailDTO struct {
	classDTO
	Participants []participantDTO `json:"participants"`
}

type reserveDTO struct {
	Success       bool             `json:"success"`
	ReservationID uint64           `json:"reservation_id"`
	ClassID       uint64           `json:"class_id"`
	Capacity      int              `json:"capacity"`
	ReservedCount int              `json:"reserved_count"`
	WaitlistCount int              `json:"waitlist_count"`
	Available     int              `json:"available"`
	UserStatus    model.UserStatus `json:"user_status"`
}

type cancelDTO struct {
	Success       bool             `json:"success"`
	ReservationID uint64           `json:"reservation_id"`
	ClassID       uint64           `json:"class_id"`
	Status        string           `json:"status"`
	Capacity      int              `json:"capacity"`
	ReservedCount int              `json:"reserved_count"`
	WaitlistCount int              `json:"waitlist_count"`
	Available     int              `json:"available"`
	UserStatus    model.UserStatus `json:"user_status"`
}

func toClassDTO(s service.ClassSummary) classDTO {
	return classDTO{
		ID:            s.Class.ID,
		Title:         s.Class.Title,
		Location:      s.Class.Location,
		StartsAt:      s.Class.StartsAt.UTC(),
		EndsAt:        s.Class.EndsAt.UTC(),
		IsCancelled:   s.Class.IsCancelled,
		Capacity:      s.Occupancy.Capacity,
		ReservedCount: s.Occupancy.ReservedCount,
		WaitlistCount: s.Occupancy.WaitlistCount,
		Available:     s.Occupancy.Available(),
		UserStatus:    s.UserStatus,
		ReservationID: s.ReservationID,
	}
}

func toClassDetailDTO(d *service.ClassDetail) classDetailDTO {
	out := classDetailDTO{
		classDTO:     toClassDTO(d.ClassSummary),
		Participants: make([]participantDTO, 0, len(d.Participants)),
	}
	for _, p := range d.Participants {
		out.Participants = append(out.Participants, participantDTO{
			ReservationID: p.ID,
			ClientID:      p.ClientID,
			ReservedAt:    p.CreatedAt.UTC(),
		})
	}
	return out
}

func toReserveDTO(r *service.ReserveResult) reserveDTO {
	return reserveDTO{
		Success:       true,
		ReservationID: r.ReservationID,
		ClassID:       r.ClassID,
		Capacity:      r.Occupancy.Capacity,
		ReservedCount: r.Occupancy.ReservedCount,
		WaitlistCount: r.Occupancy.WaitlistCount,
		Available:     r.Occupancy.Available(),
		UserStatus:    r.UserStatus,
	}
}

func toCancelDTO(r *service.CancelResult) cancelDTO {
	return cancelDTO{
		Success:       true,
		ReservationID: r.ReservationID,
		ClassID:       r.ClassID,
		Status:        r.Status,
		Capacity:      r.Occupancy.Capacity,
		ReservedCount: r.Occupancy.ReservedCount,
		WaitlistCount: r.Occupancy.WaitlistCount,
		Available:     r.Occupancy.Available(),
		UserStatus:    r.UserStatus,
	}
}
