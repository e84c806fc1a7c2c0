package models

// Intake outcomes reported back to the dialer
const (
	IntakeCreated = "created"
	IntakeUpdated = "updated"
)

// DialerPayload is the record the dialer posts when an agent marks a call
// interested. Every field is optional; a nil pointer means "not sent" and
// leaves the stored value alone on the update path.
type DialerPayload struct {
	// Routing
	ExternalDialerUserID *string `json:"external_dialer_user_id,omitempty"`
	DialerUsername       *string `json:"dialer_username,omitempty"`

	// Identity
	DialerLeadID *string `json:"lead_id,omitempty"`
	VendorID     *string `json:"vendor_id,omitempty"`
	Campaign     *string `json:"campaign,omitempty"`
	ListID       *string `json:"list_id,omitempty"`
	Group        *string `json:"group,omitempty"`
	ChannelGroup *string `json:"channel_group,omitempty"`

	// Contact
	Title          *string `json:"title,omitempty"`
	FirstName      *string `json:"first_name,omitempty"`
	MiddleName     *string `json:"middle_initial,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	FullName       *string `json:"full_name,omitempty"`
	AltPhone       *string `json:"alt_phone,omitempty"`
	Email          *string `json:"email,omitempty"`
	SecurityPhrase *string `json:"security_phrase,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	DateOfBirth    *string `json:"date_of_birth,omitempty"`

	// Address
	Address1    *string `json:"address1,omitempty"`
	Address2    *string `json:"address2,omitempty"`
	Address3    *string `json:"address3,omitempty"`
	City        *string `json:"city,omitempty"`
	State       *string `json:"state,omitempty"`
	Province    *string `json:"province,omitempty"`
	PostalCode  *string `json:"postal_code,omitempty"`
	CountryCode *string `json:"country_code,omitempty"`

	// Telephony
	PhoneCode          *string `json:"phone_code,omitempty"`
	PhoneNumber        *string `json:"phone_number,omitempty"`
	DialedNumber       *string `json:"dialed_number,omitempty"`
	DialedLabel        *string `json:"dialed_label,omitempty"`
	CustomerZapChannel *string `json:"customer_zap_channel,omitempty"`
	ServerIP           *string `json:"server_ip,omitempty"`
	SIPExten           *string `json:"SIPexten,omitempty"`
	SessionID          *string `json:"session_id,omitempty"`
	UniqueID           *string `json:"uniqueid,omitempty"`
	Epoch              *string `json:"epoch,omitempty"`
	SQLDate            *string `json:"SQLdate,omitempty"`

	// Scripts / recording
	CampScript    *string `json:"camp_script,omitempty"`
	InScript      *string `json:"in_script,omitempty"`
	ScriptWidth   *string `json:"script_width,omitempty"`
	ScriptHeight  *string `json:"script_height,omitempty"`
	RecordingFile *string `json:"recording_file,omitempty"`
	Rank          *string `json:"rank,omitempty"`
	Owner         *string `json:"owner,omitempty"`

	// Property survey
	PreferredContactTime          *string `json:"preferred_contact_time,omitempty"`
	PropertyOwnership             *string `json:"property_ownership,omitempty"`
	PropertyType                  *string `json:"property_type,omitempty"`
	NumberOfBedrooms              *string `json:"number_of_bedrooms,omitempty"`
	RoofType                      *string `json:"roof_type,omitempty"`
	RoofMaterial                  *string `json:"roof_material,omitempty"`
	AverageMonthlyElectricityBill *string `json:"average_monthly_electricity_bill,omitempty"`
	CurrentEnergySupplier         *string `json:"current_energy_supplier,omitempty"`
	ElectricHeatingAppliances     *string `json:"electric_heating_appliances,omitempty"`
	EnergyDetails                 *string `json:"energy_details,omitempty"`
	Timeframe                     *string `json:"timeframe,omitempty"`
	MovingPropertiesNextFiveYears *string `json:"moving_properties_next_five_years,omitempty"`
	TimeframeDetails              *string `json:"timeframe_details,omitempty"`

	// Energy quick-fields
	EnergyBillAmount      *float64 `json:"energy_bill_amount,omitempty"`
	HasEVCharger          *bool    `json:"has_ev_charger,omitempty"`
	DayNightRate          *string  `json:"day_night_rate,omitempty"`
	HasPreviousQuotes     *bool    `json:"has_previous_quotes,omitempty"`
	PreviousQuotesDetails *string  `json:"previous_quotes_details,omitempty"`

	// Free-text notes typed by the agent
	Comments *string `json:"comments,omitempty"`
}

// IntakeResult is returned to the dialer after every intake call
type IntakeResult struct {
	Lead             *Lead  `json:"lead"`
	CreatedVsUpdated string `json:"created_vs_updated"`
}
