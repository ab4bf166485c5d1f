package handlers

import "github.com/pribylovaa/placenotes/internal/models"

// Поля ответа в camelCase: так их читает фронтенд карты.

type pointDTO struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

type itemDTO struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	OwnerID     string   `json:"ownerId"`
	OwnerName   string   `json:"ownerName,omitempty"`
	RecipientID string   `json:"recipientId,omitempty"`
	Body        string   `json:"body"`
	Location    pointDTO `json:"location"`
	Radius      float64  `json:"radius"`
	Distance    *float64 `json:"distance,omitempty"` // только в поиске по области
	Read        bool     `json:"read"`
	Hidden      bool     `json:"hidden"`
	CreatedAt   int64    `json:"createdAt"` // Unix UTC
	UpdatedAt   int64    `json:"updatedAt"` // Unix UTC
}

type paginationDTO struct {
	CurrentPage   int `json:"currentPage"`
	TotalPages    int `json:"totalPages"`
	TotalMessages int `json:"totalMessages"`
}

type pageResponse struct {
	Messages   []itemDTO     `json:"messages"`
	Pagination paginationDTO `json:"pagination"`
}

// createItemRequest: тело POST /messages и POST /notes.
// Отсутствующие координаты дают 400 invalid location, отсутствующий radius: значение по умолчанию.
type createItemRequest struct {
	RecipientID string   `json:"recipientId"`
	Body        string   `json:"body"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
	Radius      *float64 `json:"radius"`
}

type updateBodyRequest struct {
	Body string `json:"body"`
}

func toItemDTO(it models.Item) itemDTO {
	return itemDTO{
		ID:          it.ID,
		Kind:        string(it.Kind),
		OwnerID:     it.OwnerID,
		RecipientID: it.RecipientID,
		Body:        it.Body,
		Location:    pointDTO{Type: it.Location.Type, Coordinates: it.Location.Coordinates},
		Radius:      it.Radius,
		Read:        it.Read,
		Hidden:      it.Hidden,
		CreatedAt:   it.CreatedAt.Unix(),
		UpdatedAt:   it.UpdatedAt.Unix(),
	}
}

func toPageResponse(p *models.Page, withDistance bool) pageResponse {
	out := pageResponse{
		Messages: make([]itemDTO, 0, len(p.Items)),
		Pagination: paginationDTO{
			CurrentPage:   p.Pagination.CurrentPage,
			TotalPages:    p.Pagination.TotalPages,
			TotalMessages: p.Pagination.TotalMessages,
		},
	}

	for _, v := range p.Items {
		dto := toItemDTO(v.Item)
		dto.OwnerName = v.OwnerName
		if withDistance {
			d := v.Distance
			dto.Distance = &d
		}
		out.Messages = append(out.Messages, dto)
	}

	return out
}
