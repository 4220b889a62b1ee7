package normalize

// Field defaults applied when a provider payload omits a value. The typed
// payload variants decode absent keys as Go zero values, and the
// normalizers rely on that mapping explicitly:
//
//	field          default    google source                      yelp source
//	name           (none)     name                               name
//	address        ""         formatted_address, vicinity        location.display_address
//	zip_code       ""         address_components[postal_code]    location.zip_code
//	country        ""         address_components[country]        location.country
//	location       [0,0]      geometry.location                  coordinates
//	phone          ""         formatted_phone_number             display_phone, phone
//	website        ""         website                            (not provided)
//	rating         0          rating                             rating
//	review_count   0          user_ratings_total                 review_count
//	price_level    ""         PriceTier(price_level)             price when "$".."$$$$"
//	category       ""         types[0]                           categories[0].alias
//	categories     ""         types joined ", "                  aliases joined ", "
//	image_url      ""         photos[0].photo_reference          image_url
//	is_closed      false      business_status=CLOSED_PERMANENTLY is_closed
//	hours          []         opening_hours.weekday_text         hours[0].open rendered
//
// A record without a non-blank name is malformed and is never normalized.

const defaultString = ""

// firstNonEmpty returns the first non-blank value or the string default.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return defaultString
}
