package dto

// ── assistant ──

// ChatRequest POST /assistant/chat
type ChatRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
}

// ChatResponse model reply, verbatim
type ChatResponse struct {
	Response string `json:"response"`
}

// ── matchmaking ──

// Match one scored company
type Match struct {
	CompanyID    string   `json:"companyId"`
	CompanyName  string   `json:"companyName"`
	CompanyEmail string   `json:"companyEmail"`
	MatchScore   int      `json:"matchScore"`
	Reasoning    string   `json:"reasoning"`
	LookingFor   []string `json:"lookingFor"`
}

// MatchResponse ranked matches; Message explains an empty result
type MatchResponse struct {
	Matches []Match `json:"matches"`
	Message string  `json:"message,omitempty"`
}

// ── contract generation ──

// GenerateContractRequest POST /contracts/generate
type GenerateContractRequest struct {
	StudentName      string `json:"studentName" binding:"max=255"`
	CompanyName      string `json:"companyName" binding:"max=255"`
	ICO              string `json:"ico"         binding:"max=64"`
	Position         string `json:"position"    binding:"max=255"`
	StartDate        string `json:"startDate"   binding:"max=100"`
	EndDate          string `json:"endDate"     binding:"max=100"`
	CreateInternship bool   `json:"createInternship"`
}

// GenerateContractResponse stored PDF
type GenerateContractResponse struct {
	DownloadURL  string `json:"downloadURL"`
	FileName     string `json:"fileName"`
	InternshipID string `json:"internshipId,omitempty"`
}
