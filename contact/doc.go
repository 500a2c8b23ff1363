package contact

// contact pairs a display name with a validated email address. Contacts fill
// the From, Reply-To and To headers of outgoing messages.
