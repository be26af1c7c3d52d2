package dto

import (
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/vectorstore"
)

type AskRequest struct {
	Question string           `json:"question"`
	K        int              `json:"k"`
	History  []model.ChatTurn `json:"history"`
}

type AskResponse struct {
	OK       bool              `json:"ok"`
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Sources  []vectorstore.Hit `json:"sources"`
}

type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type SearchResponse struct {
	OK      bool              `json:"ok"`
	Results []vectorstore.Hit `json:"results"`
}
