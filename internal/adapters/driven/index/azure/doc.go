// Package azure stores index records in Azure AI Search (formerly Azure
// Cognitive Search) through its REST API. It implements driven.SearchIndex.
//
// Requests authenticate with an admin api-key, or with an Azure AD
// client-credentials token when no key is configured.
package azure
